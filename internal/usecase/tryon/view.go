package tryon

import (
	"tryon-web/internal/domain"
	"tryon-web/internal/usecase/mutation"
	"tryon-web/internal/usecase/slot"
)

type ViewKind string

const (
	ViewUpload  ViewKind = "upload"
	ViewLoading ViewKind = "loading"
	ViewResult  ViewKind = "result"
	ViewError   ViewKind = "error"
)

// View is everything a page render needs.
type View struct {
	Kind      ViewKind              `json:"view"`
	Status    domain.MutationStatus `json:"status"`
	Person    slot.Snapshot         `json:"person"`
	Clothing  slot.Snapshot         `json:"clothing"`
	CanSubmit bool                  `json:"can_submit"`
	HasFiles  bool                  `json:"has_files"`

	ErrorMessage string `json:"error_message,omitempty"`
	SoftFailure  bool   `json:"soft_failure,omitempty"`

	ResultMessage string `json:"result_message,omitempty"`
	HasResult     bool   `json:"has_result"`
}

// SelectView maps the lifecycle state and slot snapshots to the page to show.
func SelectView(state mutation.State, person, clothing slot.Snapshot, canSubmit bool) View {
	v := View{
		Status:    state.Status,
		Person:    person,
		Clothing:  clothing,
		CanSubmit: canSubmit && state.Status != domain.StatusPending,
		HasFiles:  person.HasFile || clothing.HasFile,
	}

	switch state.Status {
	case domain.StatusPending:
		v.Kind = ViewLoading
	case domain.StatusFailed:
		v.Kind = ViewError
		v.ErrorMessage = state.ErrorMessage()
		if v.ErrorMessage == "" {
			v.ErrorMessage = domain.DefaultFailureText
		}
	case domain.StatusSuccess:
		if state.Result.HasImage() {
			v.Kind = ViewResult
			v.HasResult = true
			v.ResultMessage = state.Result.Message
			break
		}
		v.Kind = ViewError
		v.SoftFailure = true
		v.ErrorMessage = domain.DefaultFailureText
		if state.Result != nil && state.Result.Message != "" {
			v.ErrorMessage = state.Result.Message
		}
	default:
		v.Kind = ViewUpload
	}

	return v
}
