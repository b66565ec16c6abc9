package mount

import (
	"encoding/json"
	"fmt"
)

func getStatusMapping() []string {
	return []string{"UNMOUNTED", "MOUNTING", "MOUNTED", "INJECTING", "INJECTED", "CLEANING", "COMMITTING", "COMMITTED", "FAILED"}
}

// Status is the lifecycle state of one mount session.
type Status int

const (
	StatusUnmounted Status = iota
	StatusMounting
	StatusMounted
	StatusInjecting
	StatusInjected
	StatusCleaning
	StatusCommitting
	StatusCommitted
	StatusFailed
)

func (s Status) String() string {
	return getStatusMapping()[int(s)]
}

// UnmarshalJSON converts a JSON string into a Status
func (s *Status) UnmarshalJSON(data []byte) error {
	var stringInput string
	err := json.Unmarshal(data, &stringInput)
	if err != nil {
		return err
	}
	for n, str := range getStatusMapping() {
		if str == stringInput {
			*s = Status(n)
			return nil
		}
	}
	return fmt.Errorf("invalid mount session status: %s", stringInput)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(getStatusMapping()[s])
}
