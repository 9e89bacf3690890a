package domain

import "testing"

func TestApplyScholarship(t *testing.T) {
	cases := []struct {
		name    string
		student Student
		amount  float64
		want    float64
	}{
		{
			name:    "no scholarship",
			student: Student{},
			amount:  4000,
			want:    4000,
		},
		{
			name:    "flag set but no values",
			student: Student{HasScholarship: true},
			amount:  4000,
			want:    4000,
		},
		{
			name:    "percentage",
			student: Student{HasScholarship: true, ScholarshipPercentage: 25},
			amount:  4000,
			want:    3000,
		},
		{
			name:    "fixed amount",
			student: Student{HasScholarship: true, ScholarshipFixedAmount: 500},
			amount:  4000,
			want:    3500,
		},
		{
			name: "percentage wins over fixed",
			student: Student{
				HasScholarship:         true,
				ScholarshipPercentage:  50,
				ScholarshipFixedAmount: 100,
			},
			amount: 4000,
			want:   2000,
		},
		{
			name:    "fixed above amount floors at zero",
			student: Student{HasScholarship: true, ScholarshipFixedAmount: 5000},
			amount:  4000,
			want:    0,
		},
		{
			name:    "full percentage",
			student: Student{HasScholarship: true, ScholarshipPercentage: 100},
			amount:  4000,
			want:    0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.student.ApplyScholarship(tc.amount); got != tc.want {
				t.Errorf("ApplyScholarship(%v) = %v, want %v", tc.amount, got, tc.want)
			}
		})
	}
}
