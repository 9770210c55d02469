package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrContactNotFound        = errors.New("trusted contact not found")
	ErrContactChannelRequired = errors.New("trusted contact needs a name and a phone or email")
)

type TrustedContact struct {
	ID    string `json:"_id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
}

// ContactRequest is the payload for both add and update.
type ContactRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (r ContactRequest) normalized() (ContactRequest, error) {
	out := ContactRequest{
		Name:  strings.TrimSpace(r.Name),
		Phone: strings.TrimSpace(r.Phone),
		Email: strings.TrimSpace(r.Email),
	}

	if out.Name == "" || (out.Phone == "" && out.Email == "") {
		return ContactRequest{}, ErrContactChannelRequired
	}

	return out, nil
}

// Valid reports whether the request satisfies the name plus phone-or-email rule.
func (r ContactRequest) Valid() bool {
	_, err := r.normalized()
	return err == nil
}

func (c TrustedContact) HasPhone() bool { return c.Phone != "" }
func (c TrustedContact) HasEmail() bool { return c.Email != "" }

// Contacts returns the trusted contacts in list order, never nil.
func (u *User) Contacts() []TrustedContact {
	out := make([]TrustedContact, len(u.TrustedContacts))
	copy(out, u.TrustedContacts)
	return out
}

// Contact finds a trusted contact by id.
func (u *User) Contact(id string) (TrustedContact, bool) {
	i := u.contactIndex(id)
	if i < 0 {
		return TrustedContact{}, false
	}
	return u.TrustedContacts[i], true
}

// AddContact appends a contact with a freshly generated id.
func (u *User) AddContact(req ContactRequest, now time.Time) (TrustedContact, error) {
	in, err := req.normalized()
	if err != nil {
		return TrustedContact{}, err
	}

	c := TrustedContact{
		ID:    uuid.NewString(),
		Name:  in.Name,
		Phone: in.Phone,
		Email: in.Email,
	}

	u.TrustedContacts = append(u.TrustedContacts, c)
	u.touch(now)

	return c, nil
}

// UpdateContact replaces name, phone and email of the contact in place.
// Fields left empty in the request are cleared.
func (u *User) UpdateContact(id string, req ContactRequest, now time.Time) (TrustedContact, error) {
	in, err := req.normalized()
	if err != nil {
		return TrustedContact{}, err
	}

	i := u.contactIndex(id)
	if i < 0 {
		return TrustedContact{}, ErrContactNotFound
	}

	c := &u.TrustedContacts[i]
	c.Name = in.Name
	c.Phone = in.Phone
	c.Email = in.Email
	u.touch(now)

	return *c, nil
}

// RemoveContact drops the contact with the given id, keeping the order of
// the rest. It reports whether anything was removed.
func (u *User) RemoveContact(id string, now time.Time) bool {
	i := u.contactIndex(id)
	if i < 0 {
		return false
	}

	u.TrustedContacts = append(u.TrustedContacts[:i:i], u.TrustedContacts[i+1:]...)
	u.touch(now)

	return true
}

func (u *User) contactIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range u.TrustedContacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
