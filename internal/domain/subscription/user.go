package subscription

import (
	"database/sql"
	"time"
)

// User is a chat user of the bot. Created on first interaction, display
// attributes refreshed on later ones, never deleted.
type User struct {
	ID         int64
	TelegramID int64
	Username   sql.NullString
	FirstName  sql.NullString
	LastName   sql.NullString
	CreatedAt  time.Time
}
