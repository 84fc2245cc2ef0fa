package apps

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Reference identifies a launchable target bound to a gesture or tap action.
// It is a pure value: two references are equal when all fields are equal.
type Reference struct {
	Label             string
	PackageName       string
	ActivityClassName string
	UserProfileID     int
}

// IsZero reports whether r is unbound.
func (r Reference) IsZero() bool {
	return r == Reference{}
}

// Key returns the app identity key of r.
func (r Reference) Key() string {
	return Key(r.PackageName, r.UserProfileID)
}

// Key builds the app identity key "<packageName>/<userProfileId>". Every
// producer of rename-map keys, hidden-app entries and shortcut ids goes through
// this function.
func Key(packageName string, userProfileID int) string {
	return packageName + "/" + strconv.Itoa(userProfileID)
}

// referenceDoc is the persisted shape of a Reference.
type referenceDoc struct {
	Label             string `json:"label"`
	PackageName       string `json:"packageName"`
	ActivityClassName string `json:"activityClassName"`
	UserString        string `json:"userString"`
}

func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceDoc{
		Label:             r.Label,
		PackageName:       r.PackageName,
		ActivityClassName: r.ActivityClassName,
		UserString:        strconv.Itoa(r.UserProfileID),
	})
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	var doc referenceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.PackageName == "" {
		return fmt.Errorf("app reference: missing packageName")
	}
	user := 0
	if doc.UserString != "" {
		u, err := strconv.Atoi(doc.UserString)
		if err != nil {
			return fmt.Errorf("app reference: invalid userString %q: %w", doc.UserString, err)
		}
		user = u
	}
	*r = Reference{
		Label:             doc.Label,
		PackageName:       doc.PackageName,
		ActivityClassName: doc.ActivityClassName,
		UserProfileID:     user,
	}
	return nil
}
