package usage

import (
	"strconv"
	"time"

	"github.com/lumichat/billing/internal/models"
	"github.com/lumichat/billing/internal/security"
)

// Owner identifies who a daily aggregate belongs to: an authenticated
// user or an anonymized session.
type Owner struct {
	Type string
	Key  string
}

// UserOwner keys an aggregate by user ID.
func UserOwner(userID uint64) Owner {
	return Owner{Type: models.OwnerTypeUser, Key: strconv.FormatUint(userID, 10)}
}

// AnonOwner keys an aggregate by the anonymized session identifier.
func AnonOwner(anonSecret, sessionID string) Owner {
	return Owner{Type: models.OwnerTypeAnon, Key: security.AnonymizeSession(anonSecret, sessionID)}
}

// OwnerForMessage resolves the aggregate owner for a message:
// authenticated messages roll up per user, anonymous ones per session.
func OwnerForMessage(anonSecret string, msg *models.Message) Owner {
	if msg != nil && msg.UserID != nil && *msg.UserID != 0 {
		return UserOwner(*msg.UserID)
	}
	if msg == nil {
		return Owner{}
	}
	return AnonOwner(anonSecret, msg.SessionID)
}

// DayOf truncates a timestamp to its UTC day bucket.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
