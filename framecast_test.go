package framecast_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/framecast"
	"github.com/aretw0/framecast/pkg/adapters/memory"
	"github.com/aretw0/framecast/pkg/compositor"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/export"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func pngBytes(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFrames(t testing.TB) *memory.Registry {
	t.Helper()
	transparent := color.NRGBA{}
	classic, err := compositor.LoadFrame("classic", pngBytes(t, 16, 16, transparent), 0)
	require.NoError(t, err)
	bordered, err := compositor.LoadFrame("bordered", pngBytes(t, 16, 16, transparent), domain.BorderedPhotoAreaFraction)
	require.NoError(t, err)
	reg, err := memory.NewRegistry(classic, bordered)
	require.NoError(t, err)
	return reg
}

func newStudio(t *testing.T, store ports.EventStore, opts ...framecast.Option) *framecast.Studio {
	t.Helper()
	opts = append([]framecast.Option{framecast.WithOutputSize(64)}, opts...)
	studio, err := framecast.New(newFrames(t), store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = studio.Close() })
	return studio
}

func countsAre(s *framecast.Studio, download, share int64) func() bool {
	return func() bool {
		c := s.Counts()
		return c[domain.ActionDownload] == download && c[domain.ActionShare] == share
	}
}

type sharerFunc func(context.Context, *domain.SharePackage) error

func (f sharerFunc) Share(ctx context.Context, p *domain.SharePackage) error { return f(ctx, p) }

func TestStudio_DownloadFlow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithCounts(domain.ActionCounts{
		domain.ActionDownload: 3,
		domain.ActionShare:    1,
	}))
	defer store.Close()

	studio := newStudio(t, store)
	require.NoError(t, studio.Start(ctx))
	assert.True(t, countsAre(studio, 3, 1)())

	res, err := studio.Compose(ctx, pngBytes(t, 40, 20, color.NRGBA{R: 255, A: 255}), "")
	require.NoError(t, err)
	assert.Equal(t, 64, res.Size)
	assert.Equal(t, "classic", res.Frame)

	cfg, err := png.DecodeConfig(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 64, cfg.Height)

	dl, err := studio.Download(ctx, res)
	require.NoError(t, err)
	assert.Regexp(t, `^campaign-photo-\d{13}\.png$`, dl.FileName)
	assert.Equal(t, "image/png", dl.ContentType)
	assert.Equal(t, res.PNG, dl.PNG)

	require.Eventually(t, countsAre(studio, 4, 1), waitFor, 5*time.Millisecond)
}

func TestStudio_ShareFallback(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	studio := newStudio(t, store)
	require.NoError(t, studio.Start(ctx))

	res, err := studio.Compose(ctx, pngBytes(t, 8, 8, color.White), "bordered")
	require.NoError(t, err)
	assert.Equal(t, "bordered", res.Frame)

	pkg, err := studio.Share(ctx, res)
	require.NoError(t, err)
	assert.False(t, pkg.Native)
	assert.Equal(t, "campaign-photo.png", pkg.FileName)
	assert.Equal(t, export.FallbackURL(export.DefaultShareText), pkg.FallbackURL)

	require.Eventually(t, countsAre(studio, 0, 1), waitFor, 5*time.Millisecond)
}

func TestStudio_ShareNative(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	var shared []string
	studio := newStudio(t, store,
		framecast.WithSharer(sharerFunc(func(_ context.Context, p *domain.SharePackage) error {
			shared = append(shared, p.FileName)
			return nil
		})),
		framecast.WithShareOptions(export.ShareOptions{FilePrefix: "rally"}),
	)

	res, err := studio.Compose(ctx, pngBytes(t, 8, 8, color.White), "")
	require.NoError(t, err)
	pkg, err := studio.Share(ctx, res)
	require.NoError(t, err)
	assert.True(t, pkg.Native)
	assert.Equal(t, []string{"rally.png"}, shared)
}

func TestStudio_ComposeErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	var (
		mu     sync.Mutex
		events []*domain.CompositeEvent
	)
	studio := newStudio(t, store, framecast.WithLifecycleHooks(domain.LifecycleHooks{
		OnComposite: func(_ context.Context, e *domain.CompositeEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	}))

	res, err := studio.Compose(ctx, []byte("definitely not an image"), "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Equal(t, export.MsgNotAnImage, export.UserMessage(err))

	_, err = studio.Compose(ctx, pngBytes(t, 4, 4, color.White), "gold")
	assert.ErrorIs(t, err, domain.ErrFrameNotFound)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = studio.Compose(cctx, pngBytes(t, 4, 4, color.White), "")
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1, "only attempts that reached the compositor are reported")
	assert.ErrorIs(t, events[0].Err, domain.ErrDecode)
	assert.Equal(t, "classic", events[0].Frame)

	n, err := store.Count(ctx, domain.ActionDownload)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStudio_Frames(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()
	studio := newStudio(t, store)

	infos, err := studio.Frames(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "bordered", infos[0].Name)
	assert.False(t, infos[0].Active)
	assert.True(t, infos[1].Active)

	require.NoError(t, studio.SetActiveFrame(ctx, "bordered"))
	res, err := studio.Compose(ctx, pngBytes(t, 4, 4, color.White), "")
	require.NoError(t, err)
	assert.Equal(t, "bordered", res.Frame)

	assert.ErrorIs(t, studio.SetActiveFrame(ctx, "gold"), domain.ErrFrameNotFound)
}

type brokenStore struct {
	ports.EventStore
}

func (brokenStore) Count(context.Context, domain.ActionKind) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestStudio_StartFailsSoft(t *testing.T) {
	inner := memory.NewStore()
	defer inner.Close()

	studio := newStudio(t, brokenStore{EventStore: inner})
	require.NoError(t, studio.Start(context.Background()))
	assert.Equal(t, domain.NewActionCounts(), studio.Counts())

	require.NoError(t, studio.Record(context.Background(), domain.ActionDownload))
	require.Eventually(t, countsAre(studio, 1, 0), waitFor, 5*time.Millisecond)
}

func TestStudio_CloseDrainsRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	studio, err := framecast.New(newFrames(t), store, framecast.WithOutputSize(32))
	require.NoError(t, err)

	res, err := studio.Compose(ctx, pngBytes(t, 4, 4, color.White), "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := studio.Download(ctx, res)
		require.NoError(t, err)
	}
	require.NoError(t, studio.Close())
	require.NoError(t, studio.Close())

	n, err := store.Count(ctx, domain.ActionDownload)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	assert.ErrorIs(t, studio.Start(ctx), framecast.ErrClosed)

	// After Close the export still works but nothing is recorded.
	_, err = studio.Download(ctx, res)
	require.NoError(t, err)
	n, err = store.Count(ctx, domain.ActionDownload)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestNew_Validation(t *testing.T) {
	store := memory.NewStore()
	defer store.Close()

	_, err := framecast.New(nil, store)
	assert.Error(t, err)
	_, err = framecast.New(newFrames(t), nil)
	assert.Error(t, err)
	_, err = framecast.New(newFrames(t), store, framecast.WithOutputSize(-1))
	assert.Error(t, err)

	_, err = (&framecast.Studio{}).Download(context.Background(), nil)
	assert.Error(t, err)
}

func palettedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Gray{Y: 128}})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStudio_ComposeUsesCompositorPixelLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	defer store.Close()

	t.Run("limit raised above the default", func(t *testing.T) {
		if testing.Short() {
			t.Skip("decodes a 50 MP photo")
		}
		photo := palettedPNG(t, 10000, 5001)

		studio := newStudio(t, store)
		_, err := studio.Compose(ctx, photo, "")
		require.ErrorIs(t, err, compositor.ErrTooLarge)

		raised := compositor.New(compositor.WithMaxSourcePixels(100_000_000))
		studio = newStudio(t, store, framecast.WithCompositor(raised))
		res, err := studio.Compose(ctx, photo, "")
		require.NoError(t, err)
		assert.Equal(t, 64, res.Size)
	})

	t.Run("limit lowered", func(t *testing.T) {
		small := compositor.New(compositor.WithMaxSourcePixels(100))
		studio := newStudio(t, store, framecast.WithCompositor(small))

		_, err := studio.Compose(ctx, palettedPNG(t, 20, 20), "")
		require.ErrorIs(t, err, compositor.ErrTooLarge)
		var decodeErr *domain.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "photo", decodeErr.Asset)
	})

	t.Run("zero disables the check", func(t *testing.T) {
		unlimited := compositor.New(compositor.WithMaxSourcePixels(0))
		studio := newStudio(t, store, framecast.WithCompositor(unlimited))

		res, err := studio.Compose(ctx, palettedPNG(t, 300, 200), "")
		require.NoError(t, err)
		assert.Equal(t, 64, res.Size)
	})
}
