package draft

import (
	"errors"
	"fmt"
	"testing"
)

func TestSubmitErrorRejectCapsDetails(t *testing.T) {
	subErr := &SubmitError{Message: "changeset rejected"}
	for i := 0; i < MaxRejectedDetails+10; i++ {
		subErr.Reject(fmt.Sprintf("p%03d", i), "unknown_recipe")
	}
	subErr.Reject("p999", "unknown_plant")

	if len(subErr.Rejected) != MaxRejectedDetails {
		t.Fatalf("rejected details = %d, want cap %d", len(subErr.Rejected), MaxRejectedDetails)
	}
	if subErr.ReasonCounts["unknown_recipe"] != MaxRejectedDetails+10 {
		t.Fatalf("reason counts must keep growing past the cap: %d", subErr.ReasonCounts["unknown_recipe"])
	}
	if subErr.ReasonCounts["unknown_plant"] != 1 {
		t.Fatalf("second reason count = %d", subErr.ReasonCounts["unknown_plant"])
	}
}

func TestSubmitErrorEmpty(t *testing.T) {
	subErr := &SubmitError{}
	if !subErr.Empty() {
		t.Fatal("fresh error should be empty")
	}
	subErr.Reject("p1", "unknown_tray")
	if subErr.Empty() {
		t.Fatal("error with a rejection is not empty")
	}
}

func TestOfflineErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	offline := &OfflineError{Cause: cause}
	if !errors.Is(offline, cause) {
		t.Fatal("offline error must unwrap to its transport cause")
	}
	var target *OfflineError
	if !errors.As(error(offline), &target) {
		t.Fatal("errors.As must recognize *OfflineError")
	}
}
