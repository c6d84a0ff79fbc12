package display

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/eqmount/mount"
)

func TestRender(t *testing.T) {
	d := mount.Display{
		Title: "192.168.4.20:6001",
		Lines: [3]string{"R.A.  +1.0000 r/d", "Dec   +0.0000 r/d", "Slew 12% eta 01:00 and more"},
	}
	got := string(Render(d))
	want := "\f" + strings.Join([]string{
		"192.168.4.20:6001   ",
		"R.A.  +1.0000 r/d   ",
		"Dec   +0.0000 r/d   ",
		"Slew 12% eta 01:00 a",
	}, "\r\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected render: want(-)/got(+):\n%s", diff)
	}
}

type chanWriter chan string

func (c chanWriter) Write(b []byte) (int, error) {
	c <- string(b)
	return len(b), nil
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("unplugged") }

func TestLCD(t *testing.T) {
	l := newLCD()
	first := mount.Display{Title: "first"}
	l.Show(first)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := make(chanWriter)
	done := make(chan error, 1)
	go func() { done <- l.process(ctx, w) }()

	next := func() string {
		t.Helper()
		select {
		case s := <-w:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no frame written")
		}
		return ""
	}
	if got := next(); got != string(Render(first)) {
		t.Errorf("first frame = %q", got)
	}
	second := mount.Display{Title: "second"}
	l.Show(second)
	l.Show(second)
	if got := next(); got != string(Render(second)) {
		t.Errorf("second frame = %q", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("process returned %v", err)
	}

	if err := l.process(context.Background(), failWriter{}); err == nil {
		t.Error("write failure not reported")
	}
}

type recorder struct {
	frames []mount.Display
}

func (r *recorder) Show(d mount.Display) { r.frames = append(r.frames, d) }

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, Discard, b, &Log{}}
	d := mount.Display{Title: "x"}
	m.Show(d)
	for _, r := range []*recorder{a, b} {
		if diff := cmp.Diff([]mount.Display{d}, r.frames); diff != "" {
			t.Errorf("unexpected frames: want(-)/got(+):\n%s", diff)
		}
	}
}
