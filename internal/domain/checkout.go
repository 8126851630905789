package domain

// CartLine is a snapshot of one cart entry taken at submit time.
type CartLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"imageRef,omitempty"`
}

type CheckoutForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Pincode   string `json:"pincode"`
	State     string `json:"state"`
}

func (f CheckoutForm) CustomerName() string {
	return f.FirstName + " " + f.LastName
}

func (f CheckoutForm) ShippingAddress() Address {
	return Address{
		Address1: f.Address1,
		Address2: f.Address2,
		City:     f.City,
		State:    f.State,
		Pincode:  f.Pincode,
	}
}
