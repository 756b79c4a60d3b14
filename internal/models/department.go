package models

// Department groups courses and students.
type Department struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// DepartmentOther labels rows whose department cannot be resolved.
const DepartmentOther = "Other"
