package tryon

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"tryon-web/internal/domain"
	"tryon-web/internal/repository/preview"
	"tryon-web/internal/repository/preview/memory"
	"tryon-web/internal/tryonapi"
	"tryon-web/internal/usecase/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	result  *domain.TryOnResult
	err     error
	release chan struct{}
}

func (f *fakeClient) TryOn(ctx context.Context, person, clothing *domain.File) (*domain.TryOnResult, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return f.result, f.err
}

func (f *fakeClient) Health(context.Context) (string, error) {
	return "ok", nil
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.TryOnEvent
}

func (f *fakePublisher) Publish(_ context.Context, event domain.TryOnEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) statuses() []domain.MutationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MutationStatus, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Status)
	}
	return out
}

type fixture struct {
	usecase   *TryOnUsecase
	previews  *memory.PreviewRepository
	client    *fakeClient
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	zlog.Init()

	f := &fixture{
		previews:  memory.NewPreviewRepository(),
		client:    &fakeClient{},
		publisher: &fakePublisher{},
	}
	f.usecase = NewTryOnUsecase(validation.DefaultPolicy(), f.previews, f.client, f.publisher, time.Minute, &zlog.Logger)
	return f
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 12))))
	return buf.Bytes()
}

func pngFile(t *testing.T, name string) *domain.File {
	data := pngData(t)
	return &domain.File{Name: name, Size: int64(len(data)), MimeType: "image/png", Data: data}
}

func selectBoth(t *testing.T, sess *Session) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, sess.SelectFile(ctx, domain.SlotPerson, pngFile(t, "person.png")))
	require.NoError(t, sess.SelectFile(ctx, domain.SlotClothing, pngFile(t, "shirt.png")))
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	resultPNG := pngData(t)
	f.client.result = &domain.TryOnResult{Success: true, ResultImage: base64.StdEncoding.EncodeToString(resultPNG), Message: "Try-on generated"}

	sess, created := f.usecase.Session("")
	require.True(t, created)
	assert.Equal(t, ViewUpload, sess.View().Kind)
	assert.False(t, sess.CanSubmit())

	selectBoth(t, sess)
	assert.True(t, sess.CanSubmit())
	before := sess.View()
	require.NotEmpty(t, before.Person.PreviewID)
	require.NotEmpty(t, before.Clothing.PreviewID)

	require.NoError(t, sess.Submit(context.Background()))
	sess.Wait()

	view := sess.View()
	assert.Equal(t, ViewResult, view.Kind)
	assert.True(t, view.HasResult)
	assert.Equal(t, "Try-on generated", view.ResultMessage)
	assert.Equal(t, 1, f.client.Calls())

	data, contentType, err := sess.ResultImage()
	require.NoError(t, err)
	assert.Equal(t, resultPNG, data)
	assert.Equal(t, "image/png", contentType)

	sess.Reset(context.Background())
	view = sess.View()
	assert.Equal(t, ViewUpload, view.Kind)
	assert.False(t, view.HasFiles)
	previewGone(t, f, before.Person.PreviewID, before.Clothing.PreviewID)

	assert.Eventually(t, func() bool {
		return len(f.publisher.statuses()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]domain.MutationStatus{domain.StatusPending, domain.StatusSuccess, domain.StatusIdle},
		f.publisher.statuses())
}

func TestPDFRejected(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.usecase.Session("")

	err := sess.SelectFile(context.Background(), domain.SlotPerson,
		&domain.File{Name: "cv.pdf", Size: 1000, MimeType: "application/pdf", Data: []byte("%PDF-1.7")})
	require.Error(t, err)

	view := sess.View()
	assert.Equal(t, ViewUpload, view.Kind)
	assert.Equal(t, "Invalid file type. Allowed types: image/jpeg, image/jpg, image/png, image/webp", view.Person.Error)
	assert.False(t, view.Person.HasFile)
	assert.False(t, view.CanSubmit)

	assert.ErrorIs(t, sess.Submit(context.Background()), ErrNotReady)
	assert.Zero(t, f.client.Calls())

	require.NoError(t, sess.DismissSlotError(context.Background(), domain.SlotPerson))
	assert.Empty(t, sess.View().Person.Error)
}

func TestOversizeRejectedAndLimitAccepted(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.usecase.Session("")
	ctx := context.Background()

	big := pngFile(t, "big.png")
	big.Size = 15 * 1024 * 1024
	require.Error(t, sess.SelectFile(ctx, domain.SlotClothing, big))
	assert.Equal(t, "File size too large. Maximum size: 10MB", sess.View().Clothing.Error)

	padded := make([]byte, 10*1024*1024)
	copy(padded, pngData(t))
	exact := &domain.File{Name: "exact.png", Size: int64(len(padded)), MimeType: "image/png", Data: padded}
	require.NoError(t, sess.SelectFile(ctx, domain.SlotClothing, exact))

	view := sess.View()
	assert.Empty(t, view.Clothing.Error)
	assert.True(t, view.Clothing.HasFile)
	assert.Equal(t, "10 MiB", view.Clothing.SizeHuman)
}

func TestServerErrorThenRetry(t *testing.T) {
	f := newFixture(t)
	f.client.err = &tryonapi.StatusError{StatusCode: 500, Body: "boom"}

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)

	require.NoError(t, sess.Submit(context.Background()))
	sess.Wait()

	view := sess.View()
	assert.Equal(t, ViewError, view.Kind)
	assert.False(t, view.SoftFailure)
	assert.Equal(t, "request failed with status code 500", view.ErrorMessage)

	sess.Reset(context.Background())

	view = sess.View()
	assert.Equal(t, ViewUpload, view.Kind)
	assert.False(t, view.Person.HasFile)
	assert.False(t, view.Clothing.HasFile)
	assert.Equal(t, 1, f.client.Calls())
}

func TestCloseWaitsForRunningSubmission(t *testing.T) {
	f := newFixture(t)
	f.client.release = make(chan struct{})

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	require.NoError(t, sess.Submit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f.usecase.Close(ctx)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)

	close(f.client.release)
	f.usecase.Close(context.Background())
	sess.Wait()
}

func TestSoftFailure(t *testing.T) {
	tests := []struct {
		name    string
		result  *domain.TryOnResult
		message string
	}{
		{name: "server message", result: &domain.TryOnResult{Success: false, Message: "No person detected"}, message: "No person detected"},
		{name: "default message", result: &domain.TryOnResult{Success: false}, message: "Failed to generate try-on result"},
		{name: "success without image", result: &domain.TryOnResult{Success: true}, message: "Failed to generate try-on result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.client.result = tt.result

			sess, _ := f.usecase.Session("")
			selectBoth(t, sess)
			require.NoError(t, sess.Submit(context.Background()))
			sess.Wait()

			view := sess.View()
			assert.Equal(t, ViewError, view.Kind)
			assert.True(t, view.SoftFailure)
			assert.Equal(t, tt.message, view.ErrorMessage)

			_, _, err := sess.ResultImage()
			assert.ErrorIs(t, err, ErrNoResult)
		})
	}
}

func TestSlotsLockedWhilePending(t *testing.T) {
	f := newFixture(t)
	f.client.release = make(chan struct{})
	f.client.result = &domain.TryOnResult{Success: true, ResultImage: base64.StdEncoding.EncodeToString(pngData(t))}

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	require.NoError(t, sess.Submit(context.Background()))

	view := sess.View()
	assert.Equal(t, ViewLoading, view.Kind)
	assert.False(t, view.CanSubmit)

	assert.ErrorIs(t, sess.SelectFile(context.Background(), domain.SlotPerson, pngFile(t, "other.png")), ErrSubmissionPending)
	assert.ErrorIs(t, sess.RemoveFile(context.Background(), domain.SlotPerson), ErrSubmissionPending)
	assert.ErrorIs(t, sess.Submit(context.Background()), ErrSubmissionPending)

	close(f.client.release)
	sess.Wait()

	assert.Equal(t, ViewResult, sess.View().Kind)
	assert.Equal(t, 1, f.client.Calls())
}

func TestResetWhilePendingDiscardsResult(t *testing.T) {
	f := newFixture(t)
	f.client.release = make(chan struct{})
	f.client.result = &domain.TryOnResult{Success: true, ResultImage: "aGk="}

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	require.NoError(t, sess.Submit(context.Background()))

	sess.Reset(context.Background())
	close(f.client.release)
	sess.Wait()

	assert.Equal(t, ViewUpload, sess.View().Kind)
}

func TestUnknownSlot(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.usecase.Session("")

	err := sess.SelectFile(context.Background(), domain.SlotKind("hat"), pngFile(t, "a.png"))
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSessionLookup(t *testing.T) {
	f := newFixture(t)

	sess, created := f.usecase.Session("")
	require.True(t, created)

	again, created := f.usecase.Session(sess.ID())
	assert.False(t, created)
	assert.Same(t, sess, again)

	fresh, created := f.usecase.Session("forged-id")
	assert.True(t, created)
	assert.NotEqual(t, "forged-id", fresh.ID())

	_, err := f.usecase.Lookup("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPreviewOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner, _ := f.usecase.Session("")
	other, _ := f.usecase.Session("")
	require.NoError(t, owner.SelectFile(ctx, domain.SlotPerson, pngFile(t, "me.png")))
	ref := domain.PreviewRef(owner.View().Person.PreviewID)

	meta, data, err := f.usecase.Preview(ctx, owner, ref)
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.MimeType)
	assert.NotEmpty(t, data)

	_, _, err = f.usecase.Preview(ctx, other, ref)
	assert.ErrorIs(t, err, ErrPreviewForbidden)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.usecase.now = func() time.Time { return now }

	stale, _ := f.usecase.Session("")
	require.NoError(t, stale.SelectFile(context.Background(), domain.SlotPerson, pngFile(t, "me.png")))
	staleRef := stale.View().Person.PreviewID

	now = now.Add(2 * time.Minute)
	active, _ := f.usecase.Session("")

	assert.Equal(t, 1, f.usecase.Sweep(context.Background()))
	assert.Equal(t, 1, f.usecase.size())
	previewGone(t, f, staleRef)

	_, err := f.usecase.Lookup(active.ID())
	assert.NoError(t, err)
	_, err = f.usecase.Lookup(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCloseReleasesPreviews(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	view := sess.View()

	f.usecase.Close(context.Background())

	previewGone(t, f, view.Person.PreviewID, view.Clothing.PreviewID)
	assert.Equal(t, 0, f.usecase.size())
}

func TestDecodeImageAcceptsDataURL(t *testing.T) {
	data, err := decodeImage("data:image/png;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	_, err = decodeImage("!!!")
	assert.Error(t, err)
}

type blockingPreviews struct {
	*memory.PreviewRepository
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPreviews) Put(ctx context.Context, file *domain.File) (domain.PreviewRef, error) {
	close(b.entered)
	<-b.release
	return b.PreviewRepository.Put(ctx, file)
}

func TestSlowPreviewDoesNotStallOtherSessions(t *testing.T) {
	zlog.Init()
	previews := &blockingPreviews{
		PreviewRepository: memory.NewPreviewRepository(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	u := NewTryOnUsecase(validation.DefaultPolicy(), previews, &fakeClient{}, &fakePublisher{}, time.Minute, &zlog.Logger)

	busy, _ := u.Session("")
	file := pngFile(t, "slow.png")
	selectDone := make(chan error, 1)
	go func() {
		selectDone <- busy.SelectFile(context.Background(), domain.SlotPerson, file)
	}()
	<-previews.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		again, created := u.Session(busy.ID())
		assert.False(t, created)
		assert.Same(t, busy, again)

		_, created = u.Session("")
		assert.True(t, created)
		assert.Zero(t, u.Sweep(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session store blocked behind a slow preview upload")
	}

	close(previews.release)
	require.NoError(t, <-selectDone)
	assert.Equal(t, 2, u.size())
}

func TestDismissErrorKeepsFiles(t *testing.T) {
	f := newFixture(t)
	f.client.err = &tryonapi.StatusError{StatusCode: 500, Body: "boom"}

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	require.NoError(t, sess.Submit(context.Background()))
	sess.Wait()
	require.Equal(t, ViewError, sess.View().Kind)

	require.NoError(t, sess.DismissError(context.Background()))

	view := sess.View()
	assert.Equal(t, ViewUpload, view.Kind)
	assert.True(t, view.Person.HasFile)
	assert.True(t, view.Clothing.HasFile)
	assert.True(t, view.CanSubmit)
	assert.True(t, sess.CanSubmit())
	assert.Equal(t, 1, f.client.Calls())
}

func TestDismissErrorWhilePending(t *testing.T) {
	f := newFixture(t)
	f.client.release = make(chan struct{})
	f.client.result = &domain.TryOnResult{Success: true, ResultImage: "aGk="}

	sess, _ := f.usecase.Session("")
	selectBoth(t, sess)
	require.NoError(t, sess.Submit(context.Background()))

	assert.ErrorIs(t, sess.DismissError(context.Background()), ErrSubmissionPending)

	close(f.client.release)
	sess.Wait()
	assert.Equal(t, ViewResult, sess.View().Kind)
}

func previewGone(t *testing.T, f *fixture, refs ...string) {
	t.Helper()
	for _, ref := range refs {
		_, _, err := f.previews.Get(context.Background(), domain.PreviewRef(ref))
		assert.ErrorIs(t, err, preview.ErrPreviewNotFound, ref)
	}
}
