package handlers

import (
	"errors"
	"net/http"
	"sync/atomic"

	"commsdb/pkg/store"
	"commsdb/pkg/utils"
)

// maxContentBytes caps message content length; configured at startup.
var maxContentBytes int64 = 64 * 1024

// SetMaxContentBytes overrides the message content cap (0 keeps the
// current value).
func SetMaxContentBytes(n int64) {
	if n > 0 {
		atomic.StoreInt64(&maxContentBytes, n)
	}
}

func contentTooLarge(content string) bool {
	return int64(len(content)) > atomic.LoadInt64(&maxContentBytes)
}

// writeServiceError maps service/store errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.JSONError(w, http.StatusInternalServerError, err.Error())
}
