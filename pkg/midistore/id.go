package midistore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newRecordID builds a record id from the publish timestamp and a random
// suffix. The time component keeps ids roughly sortable and human
// readable; the suffix covers same-millisecond publishes. Callers still
// verify the id against the index before accepting it.
func newRecordID(t time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d_%s", t.UnixMilli(), suffix)
}

// newNotificationID derives a notification id from the creation time.
func newNotificationID(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// blobKey derives the storage key for one payload of a record.
func blobKey(recordID string, kind FileKind) string {
	return recordID + "_" + string(kind)
}
