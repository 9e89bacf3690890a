package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	schooldomain "github.com/smallbiznis/aula/internal/school/domain"
	userdomain "github.com/smallbiznis/aula/internal/user/domain"
	"github.com/smallbiznis/aula/internal/user/password"
	"gorm.io/gorm"
)

const (
	defaultSchoolName    = "Mi Colegio"
	defaultInvoicePrefix = "FAC-"
	defaultCreditPrefix  = "NC-"
)

// EnsureSchoolConfiguration seeds the single configuration row the
// correlative counters live on.
func EnsureSchoolConfiguration(db *gorm.DB, nodeID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&schooldomain.SchoolConfiguration{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&schooldomain.SchoolConfiguration{
			ID:                        node.Generate(),
			SchoolName:                defaultSchoolName,
			InvoiceReferencePrefix:    defaultInvoicePrefix,
			NextInvoiceReference:      1,
			CreditNoteReferencePrefix: defaultCreditPrefix,
			NextCreditNoteReference:   1,
			DefaultIVAPercentage:      0.16,
			PaymentDueDay:             5,
			SchoolYearStartMonth:      9,
		}).Error
	})
}

// EnsureAdmin seeds the bootstrap admin account when no user with the
// given email exists yet.
func EnsureAdmin(db *gorm.DB, nodeID int64, email, plaintext string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plaintext == "" {
		return nil
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userdomain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hash, err := password.Hash(plaintext)
		if err != nil {
			return err
		}
		return tx.Create(&userdomain.User{
			ID:           node.Generate(),
			Email:        email,
			FullName:     "Administrador",
			PasswordHash: hash,
			Role:         userdomain.RoleAdmin,
			IsActive:     true,
		}).Error
	})
}
