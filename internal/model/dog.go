package model

import "time"

// Dog is a dog owned by a user. Images is populated at read time and is not
// persisted on the dog row.
type Dog struct {
	OwnerID   string
	DogID     int64
	Name      string
	Age       int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Images    []*Image
}
