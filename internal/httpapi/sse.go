package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func writeSSEEvent(w http.ResponseWriter, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: message\ndata: %s\n\n", encoded)
	return err
}
