package drmoutput

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferLockUnlockReleasesOnce(t *testing.T) {
	releases := 0
	b := NewBuffer(1920, 1080, FormatXRGB8888, ModLinear, func(*Buffer) {
		releases++
	})

	b.Lock()
	b.Lock()
	require.Equal(t, int32(3), b.locks)

	b.Unlock()
	b.Unlock()
	require.Equal(t, 0, releases, "buffer must not release until creator lock is also dropped")

	b.Drop()
	require.Equal(t, 1, releases)

	// A further Unlock after release must not double-fire the hook.
	b.Unlock()
	require.Equal(t, 1, releases)
}

func TestBufferImmutableGeometry(t *testing.T) {
	b := NewBuffer(640, 480, FormatARGB8888, ModLinear, nil)
	require.Equal(t, uint32(640), b.Width())
	require.Equal(t, uint32(480), b.Height())
	require.Equal(t, FormatARGB8888, b.Format())
}

func TestBufferBackingAccessors(t *testing.T) {
	b := NewBuffer(100, 100, FormatXRGB8888, ModLinear, nil)

	if _, ok := b.GetDmabuf(); ok {
		t.Fatal("fresh buffer should not report a dmabuf backing")
	}

	b.SetDataPtr(make([]byte, 100*100*4))
	data, ok := b.GetDataPtr()
	require.True(t, ok)
	require.Len(t, data, 100*100*4)

	caps := b.Capabilities()
	require.True(t, caps.DataPtr)
	require.False(t, caps.Dmabuf)
	require.False(t, caps.SHM)
}

func TestBufferSubscribeFiresOnEveryUnlock(t *testing.T) {
	b := NewBuffer(100, 100, FormatXRGB8888, ModLinear, nil)
	b.Lock() // second holder, so the buffer survives past the first Unlock

	fired := 0
	b.Subscribe(func() { fired++ })

	b.Unlock()
	require.Equal(t, 1, fired, "listener should fire on every Unlock, not just the final one")

	b.Drop()
	require.Equal(t, 2, fired)
}

func TestBufferUnsubscribeStopsFiring(t *testing.T) {
	b := NewBuffer(100, 100, FormatXRGB8888, ModLinear, nil)
	b.Lock()

	fired := 0
	unsubscribe := b.Subscribe(func() { fired++ })
	unsubscribe()

	b.Unlock()
	require.Equal(t, 0, fired)
}

func TestBufferFBIDLifecycle(t *testing.T) {
	b := NewBuffer(100, 100, FormatXRGB8888, ModLinear, nil)
	require.Equal(t, uint32(0), b.FBID())
	b.SetFBID(42)
	require.Equal(t, uint32(42), b.FBID())
}

func TestBufferGEMHandleLifecycle(t *testing.T) {
	b := NewBuffer(100, 100, FormatXRGB8888, ModLinear, nil)
	require.Equal(t, uint32(0), b.GEMHandle())
	b.SetGEMHandle(7)
	require.Equal(t, uint32(7), b.GEMHandle())
}
