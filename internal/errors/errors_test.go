package errors

import (
	stderrors "errors"
	"testing"
)

func TestExitError_Unwrap(t *testing.T) {
	err := NewStorageError(ErrSnapshotNotFound)

	if !stderrors.Is(err, ErrSnapshotNotFound) {
		t.Error("errors.Is should see through ExitError")
	}

	var exitErr *ExitError
	if !stderrors.As(err, &exitErr) {
		t.Fatal("errors.As failed")
	}
	if exitErr.Code != ExitStorage {
		t.Errorf("Code = %d, want %d", exitErr.Code, ExitStorage)
	}
}

func TestExitError_NilErr(t *testing.T) {
	err := NewExitError(nil, ExitPreflight)
	if err.Error() != "exit code 3" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", stderrors.New("boom"), ExitUser},
		{"storage", NewStorageError(stderrors.New("boom")), ExitStorage},
		{"wrapped preflight", stderrors.Join(stderrors.New("ctx"), NewPreflightError(nil, "")), ExitPreflight},
		{"inconsistent", NewExitError(nil, ExitInconsistent), ExitInconsistent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodesDistinct(t *testing.T) {
	codes := []int{ExitSuccess, ExitUser, ExitStorage, ExitPreflight, ExitInconsistent}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Fatalf("duplicate exit code %d", c)
		}
		seen[c] = true
	}
}
