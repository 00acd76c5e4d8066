package collection

import (
	"fmt"
	"strings"
)

// ObservableTypeFileLocation is the observable type for host-qualified file
// paths, keyed as "hostname@/path/to/file".
const ObservableTypeFileLocation = "file_location"

// Observable identifies what is being collected: a typed indicator such as a
// host/path pair.
type Observable struct {
	observableType string
	key            string
}

// NewObservable creates an Observable after validating the key against its type.
func NewObservable(observableType, key string) (Observable, error) {
	if observableType == "" {
		return Observable{}, fmt.Errorf("observable type is required")
	}
	if key == "" {
		return Observable{}, fmt.Errorf("observable key is required")
	}

	if observableType == ObservableTypeFileLocation {
		if _, _, err := SplitFileLocation(key); err != nil {
			return Observable{}, err
		}
	}

	return Observable{observableType: observableType, key: key}, nil
}

// ReconstructObservable creates an Observable from persisted data without
// validation. This should only be used by repositories when reconstructing
// from storage.
func ReconstructObservable(observableType, key string) Observable {
	return Observable{observableType: observableType, key: key}
}

// Type returns the observable type (e.g. "file_location").
func (o Observable) Type() string { return o.observableType }

// Key returns the observable value (e.g. "HOST01@/Users/admin/malware.exe").
func (o Observable) Key() string { return o.key }

// String returns a human-readable representation of the observable.
func (o Observable) String() string {
	return fmt.Sprintf("%s %s", o.observableType, o.key)
}

// SplitFileLocation splits a file_location key into its hostname and path
// components. The key format is "hostname@/path/to/file"; the path portion may
// itself contain '@' characters.
func SplitFileLocation(key string) (hostname, path string, err error) {
	idx := strings.Index(key, "@")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed file_location key %q: expected hostname@path", key)
	}
	return key[:idx], key[idx+1:], nil
}
