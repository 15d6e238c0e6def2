package user

// User is a dispensary customer account. DateOfBirth and MedicalCardID feed
// the compliance checks done server-side; neither is validated here.
type User struct {
	ID            int     `json:"userId"`
	Email         string  `json:"email"`
	Password      string  `json:"password,omitempty"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Phone         string  `json:"phone"`
	DateOfBirth   string  `json:"dateOfBirth"`
	MedicalCardID *string `json:"medicalCardId,omitempty"`

	OrderIDs  []int  `json:"orderId,omitempty"`
	CreatedAt string `json:"createAt,omitempty"`
	UpdatedAt string `json:"updateAt,omitempty"`
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
