package customer

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resource is the singular resource name; routes and messages derive from it.
const Resource = "customer"

// Customer is the only document kept by the service.
type Customer struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username string             `json:"username" bson:"username"`
	Address  string             `json:"address" bson:"address"`
	Email    string             `json:"email" bson:"email"`
}

// Fields is the writable part of a Customer. Create and update always carry
// all three; an update replaces them wholesale.
type Fields struct {
	Username string `json:"username" bson:"username"`
	Address  string `json:"address" bson:"address"`
	Email    string `json:"email" bson:"email"`
}

// Validate reports ErrFieldsRequired unless every field is non-empty.
// Whitespace counts as content; nothing is trimmed.
func (f Fields) Validate() error {
	if f.Username == "" || f.Address == "" || f.Email == "" {
		return ErrFieldsRequired
	}
	return nil
}

// Customer builds an unsaved document from the fields.
func (f Fields) Customer() Customer {
	return Customer{Username: f.Username, Address: f.Address, Email: f.Email}
}

// Fields drops the identifier.
func (c Customer) Fields() Fields {
	return Fields{Username: c.Username, Address: c.Address, Email: c.Email}
}
