package domain

// Role distinguishes the kinds of people the service knows about.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Person is a read-only directory entry resolved by id.
type Person struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Role Role   `bson:"role" json:"role"`
}

func (p *Person) IsTrainer() bool {
	return p.Role == RoleTrainer
}

func (p *Person) IsStudent() bool {
	return p.Role == RoleStudent
}
