package school

type FeesStatus string

const (
	FeesPaid    FeesStatus = "Paid"
	FeesPending FeesStatus = "Pending"
	FeesOverdue FeesStatus = "Overdue"
)

type Availability string

const (
	Available Availability = "Available"
	InClass   Availability = "In Class"
	OnLeave   Availability = "On Leave"
)

type Student struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Grade      string     `json:"grade" yaml:"grade"`
	Attendance float64    `json:"attendance" yaml:"attendance"` // percent, 0-100
	FeesStatus FeesStatus `json:"feesStatus" yaml:"feesStatus"`
	GPA        float64    `json:"gpa" yaml:"gpa"` // 0.0-4.0
}

type Teacher struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Subject      string       `json:"subject" yaml:"subject"`
	Experience   string       `json:"experience" yaml:"experience"`
	Availability Availability `json:"availability" yaml:"availability"`
	Rating       float64      `json:"rating" yaml:"rating"` // 0.0-5.0
}

type Course struct {
	Code         string `json:"code" yaml:"code"`
	Title        string `json:"title" yaml:"title"`
	Department   string `json:"department" yaml:"department"`
	Credits      int    `json:"credits" yaml:"credits"`
	InstructorID string `json:"instructorId" yaml:"instructorId"`
}

type FinancialRecord struct {
	Month    string  `json:"month" yaml:"month"`
	Revenue  float64 `json:"revenue" yaml:"revenue"`
	Expenses float64 `json:"expenses" yaml:"expenses"`
}

// Stats is derived from the collections on every read and never stored.
type Stats struct {
	TotalStudents  int     `json:"totalStudents"`
	TotalTeachers  int     `json:"totalTeachers"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
	AvgAttendance  float64 `json:"avgAttendance"`
}

type FinanceSummary struct {
	Current       FinancialRecord  `json:"current"`
	Previous      *FinancialRecord `json:"previous,omitempty"`
	RevenueGrowth float64          `json:"revenueGrowth"` // percent vs previous month
	NetIncome     float64          `json:"netIncome"`
}

// StudentInput is a Student without its identifier; the store assigns one.
type StudentInput struct {
	Name       string     `json:"name" validate:"required"`
	Grade      string     `json:"grade" validate:"required"`
	Attendance float64    `json:"attendance" validate:"gte=0,lte=100"`
	FeesStatus FeesStatus `json:"feesStatus" validate:"required,oneof=Paid Pending Overdue"`
	GPA        float64    `json:"gpa" validate:"gte=0,lte=4"`
}

type TeacherInput struct {
	Name         string       `json:"name" validate:"required"`
	Subject      string       `json:"subject" validate:"required"`
	Experience   string       `json:"experience"`
	Availability Availability `json:"availability" validate:"required,oneof='Available' 'In Class' 'On Leave'"`
	Rating       float64      `json:"rating" validate:"gte=0,lte=5"`
}
