package model

import (
	"time"
)

type Book struct {
	ID        string     `json:"id" db:"id" bson:"_id"`
	Title     string     `json:"title" db:"title" bson:"title"`
	Author    string     `json:"author" db:"author" bson:"author"`
	Publisher string     `json:"publisher,omitempty" db:"publisher" bson:"publisher"`
	Genre     string     `json:"genre,omitempty" db:"genre" bson:"genre"`
	ISBN      string     `json:"isbn,omitempty" db:"isbn" bson:"isbn"`
	PubDate   *time.Time `json:"pubDate,omitempty" db:"pub_date" bson:"pubDate"`
	Reserved  bool       `json:"reserved" db:"reserved" bson:"reserved"`
	Disabled  bool       `json:"disabled" db:"disabled" bson:"disabled"`
}

type CreateBookRequest struct {
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author" validate:"required"`
	Publisher string `json:"publisher"`
	Genre     string `json:"genre"`
	ISBN      string `json:"isbn"`
	PubDate   *Date  `json:"pubDate"`
}

// BookUpdate carries the general, non-lifecycle fields of a book. Nil means unchanged.
type BookUpdate struct {
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	Publisher *string `json:"publisher"`
	Genre     *string `json:"genre"`
	ISBN      *string `json:"isbn"`
	PubDate   *Date   `json:"pubDate"`
}

func (u BookUpdate) Empty() bool {
	return u.Title == nil && u.Author == nil && u.Publisher == nil &&
		u.Genre == nil && u.ISBN == nil && u.PubDate == nil
}

// BookFilter is an equality filter. PubDate is kept raw so that the service can normalise it.
type BookFilter struct {
	Title     string
	Author    string
	Publisher string
	Genre     string
	ISBN      string
	PubDate   string
	Reserved  *bool
	Disabled  *bool
	PubDateAt *time.Time
}

type BookDetails struct {
	Book               *Book         `json:"book"`
	ReservationHistory []Reservation `json:"reservationHistory"`
}

type Reservation struct {
	ID              string     `json:"id" db:"id" bson:"_id"`
	BookID          string     `json:"bookId" db:"book_id" bson:"bookId"`
	UserID          string     `json:"userId" db:"user_id" bson:"userId"`
	ReservationDate time.Time  `json:"reservationDate" db:"reservation_date" bson:"reservationDate"`
	ReturnDate      *time.Time `json:"returnDate" db:"return_date" bson:"returnDate"`
}

func (r Reservation) Open() bool {
	return r.ReturnDate == nil
}

type ReservationFilter struct {
	BookID string
	UserID string
}

type ReservationResult struct {
	Book        Book        `json:"book"`
	Reservation Reservation `json:"reservation"`
}

type ReturnRequest struct {
	// zero means now
	ReturnDate *Date `json:"returnDate"`
}

type User struct {
	ID          string      `json:"id" db:"id" bson:"_id"`
	Name        string      `json:"name" db:"name" bson:"name"`
	Email       string      `json:"email" db:"email" bson:"email"`
	Password    string      `json:"-" db:"password_hash" bson:"passwordHash"`
	Permissions Permissions `json:"permissions" db:"permissions" bson:"permissions"`
	Disabled    bool        `json:"disabled" db:"disabled" bson:"disabled"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

type UserUpdate struct {
	Name        *string     `json:"name"`
	Email       *string     `json:"email" validate:"omitempty,email"`
	Password    *string     `json:"password"`
	Permissions Permissions `json:"permissions"`
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil && u.Permissions == nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token              string        `json:"token"`
	ExpiresAt          time.Time     `json:"expiresAt"`
	User               User          `json:"user"`
	ReservationHistory []Reservation `json:"reservationHistory"`
}
