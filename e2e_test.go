package livebind

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// TestBrowserRoundTrip drives the served page in headless Chrome: an inline
// callback bumps the record and a change event writes the input back.
func TestBrowserRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	chrome := findChrome()
	if chrome == "" {
		t.Skip("Chrome not found")
	}

	b, err := Mount(counterDef(), WithHandlers(bumpHandlers), WithMountLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	srv := httptest.NewServer(b)
	defer srv.Close()
	defer b.Close()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chrome),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	waitSum := func(want string) chromedp.Action {
		return chromedp.ActionFunc(func(ctx context.Context) error {
			var got string
			for {
				if err := chromedp.Text(`[id^="sum-"]`, &got, chromedp.ByQuery).Do(ctx); err != nil {
					return err
				}
				if strings.TrimSpace(got) == want {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(50 * time.Millisecond):
				}
			}
		})
	}

	err = chromedp.Run(ctx,
		chromedp.Navigate(srv.URL),
		chromedp.WaitVisible(`[id^="sum-"]`, chromedp.ByQuery),
		waitSum("3"),
		// Give the socket time to deliver the first render frame.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.Click(`[id^="inc-"]`, chromedp.ByQuery),
		waitSum("4"),
		chromedp.Evaluate(`(function () {
			var el = document.querySelector('[id^="x-"]');
			el.value = "10/20";
			el.dispatchEvent(new Event("change"));
		})()`, nil),
		waitSum("30"),
	)
	if err != nil {
		t.Fatalf("browser round trip failed: %v", err)
	}

	if got := b.Metrics().ModelWrites; got < 1 {
		t.Errorf("expected model writes from the browser, got %d", got)
	}
}
