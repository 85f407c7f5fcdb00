//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/config"
	"github.com/eliteGoblin/focusd/web_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
	"github.com/eliteGoblin/focusd/web_mon/test/fixtures"
)

const testAPIKey = "AIzaSyIntegrationKey01"

type streamEvent struct {
	Name string
	Cmd  infra.Command
}

// openStream subscribes to the bridge stream and forwards every named event.
func openStream(ctx context.Context, base string) <-chan streamEvent {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/bridge/stream", nil)
	Expect(err).NotTo(HaveOccurred())
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	events := make(chan streamEvent, 32)
	go func() {
		defer GinkgoRecover()
		defer resp.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(resp.Body)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev := streamEvent{Name: name}
				if name != "connected" {
					_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Cmd)
				}
				events <- ev
			}
		}
	}()
	return events
}

func nextEvent(events <-chan streamEvent) streamEvent {
	var ev streamEvent
	Eventually(events, 5*time.Second).Should(Receive(&ev))
	return ev
}

func call(method, url string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, url, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeBody(resp *http.Response, out interface{}) {
	defer resp.Body.Close()
	Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
}

var _ = Describe("Webmon daemon", func() {
	var (
		tmpDir string
		gemini *fixtures.FakeGemini
		store  *infra.EncryptedStore
		base   string
		cancel context.CancelFunc
		done   chan error
		events <-chan streamEvent
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "webmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		gemini = fixtures.NewFakeGemini(`{"verdict":"UNRELATED","reason":"Celebrity gossip is off topic"}`)

		store, err = infra.OpenStore(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := &config.Config{
			ListenAddr:      "127.0.0.1:0",
			DataDir:         tmpDir,
			ShutdownTimeout: 2 * time.Second,
			LogLevel:        "debug",
			GeminiBaseURL:   gemini.URL(),
			AITimeout:       2 * time.Second,
			BlockedPageURL:  "http://blocked.test/page",
			PageInfoTimeout: 2 * time.Second,
		}
		d := daemon.New(cfg, store, infra.NewProcessManager(), "test", zap.NewNop())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		var addr string
		Eventually(d.Ready(), 5*time.Second).Should(Receive(&addr))
		base = "http://" + addr

		events = openStream(ctx, base)
		Expect(nextEvent(events).Name).To(Equal("connected"))
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		Expect(store.Close()).To(Succeed())
		gemini.Close()
		os.RemoveAll(tmpDir)
	})

	Context("when it starts on a fresh data directory", func() {
		It("should register itself and report health", func() {
			resp := call(http.MethodGet, base+"/healthz", nil)
			var health map[string]interface{}
			decodeBody(resp, &health)
			Expect(health["status"]).To(Equal("ok"))
			Expect(health["version"]).To(Equal("test"))
			Expect(health["bridge_connected"]).To(BeTrue())

			reg, err := store.Get(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(reg).NotTo(BeNil())
			Expect(reg.PID).To(Equal(os.Getpid()))
		})

		It("should serve default settings in manual mode", func() {
			resp := call(http.MethodGet, base+"/api/v1/settings", nil)
			var settings map[string]interface{}
			decodeBody(resp, &settings)
			Expect(settings["focusMode"]).To(Equal("manual"))
			Expect(settings["blockedGroups"]).To(HaveKey("Custom"))
		})
	})

	Context("in manual mode", func() {
		It("should redirect a tab opened on a migrated legacy domain", func() {
			resp := call(http.MethodPost, base+"/api/v1/events/tab-updated", map[string]interface{}{
				"tabId": 3, "url": "https://www.facebook.com/feed", "status": "complete", "active": true,
			})
			var out map[string]string
			decodeBody(resp, &out)
			Expect(out["decision"]).To(Equal("blocked"))

			ev := nextEvent(events)
			Expect(ev.Name).To(Equal("updateTab"))
			Expect(ev.Cmd.TabID).To(Equal(3))
			Expect(ev.Cmd.URL).To(Equal("http://blocked.test/page"))
		})

		It("should let an allow-listed URL through", func() {
			resp := call(http.MethodPatch, base+"/api/v1/settings", map[string]interface{}{
				"allowedDomains": []string{"https://www.facebook.com/groups/golang"},
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = call(http.MethodPost, base+"/api/v1/events/tab-updated", map[string]interface{}{
				"tabId": 4, "url": "https://www.facebook.com/groups/golang/posts", "status": "complete", "active": true,
			})
			var out map[string]string
			decodeBody(resp, &out)
			Expect(out["decision"]).To(Equal("allow_listed"))
		})
	})

	Context("in AI mode", func() {
		BeforeEach(func() {
			resp := call(http.MethodPatch, base+"/api/v1/settings", map[string]interface{}{
				"focusMode":         "ai",
				"currentFocusTopic": "tax law",
				"geminiApiKey":      testAPIKey,
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should keep the API key out of the settings response", func() {
			resp := call(http.MethodGet, base+"/api/v1/settings", nil)
			var settings map[string]interface{}
			decodeBody(resp, &settings)
			Expect(settings["geminiApiKey"]).NotTo(Equal(testAPIKey))
			Expect(settings["geminiApiKey"]).To(HavePrefix("****"))
			Expect(settings["geminiApiKey"]).To(HaveSuffix("ey01"))
		})

		It("should warn about an off-topic page after falling back past an unavailable model", func() {
			gemini.MarkUnavailable("gemini-1.5-flash")

			resp := call(http.MethodPost, base+"/api/v1/messages", map[string]interface{}{
				"type":  "classify",
				"tabId": 9,
				"payload": map[string]string{
					"url":   "https://gossip.example.com/today",
					"title": "Who wore it better this weekend",
				},
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			info := nextEvent(events)
			Expect(info.Name).To(Equal("getPageInfo"))
			Expect(info.Cmd.TabID).To(Equal(9))
			resp = call(http.MethodPost, base+"/api/v1/bridge/replies/"+info.Cmd.ID, map[string]string{
				"description": "Red carpet photos from the weekend premiere",
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			notify := nextEvent(events)
			Expect(notify.Name).To(Equal("notify"))

			msg := nextEvent(events)
			Expect(msg.Name).To(Equal("sendMessage"))
			Expect(msg.Cmd.TabID).To(Equal(9))
			Expect(msg.Cmd.Message).NotTo(BeNil())
			Expect(msg.Cmd.Message.Payload.Label).To(Equal("UNRELATED"))
			Expect(msg.Cmd.Message.Payload.Reason).To(Equal("Celebrity gossip is off topic"))

			Expect(gemini.Calls()).To(Equal([]string{"gemini-1.5-flash", "gemini-1.5-flash-latest"}))
		})

		It("should answer educational titles without calling the model", func() {
			resp := call(http.MethodPost, base+"/api/v1/messages", map[string]interface{}{
				"type":  "classify",
				"tabId": 10,
				"payload": map[string]string{
					"url":   "https://videos.example.com/watch/1",
					"title": "Tax law lecture 3: deductions",
				},
			})
			resp.Body.Close()

			msg := nextEvent(events)
			Expect(msg.Name).To(Equal("sendMessage"))
			Expect(msg.Cmd.Message.Payload.Label).To(Equal("RELATED"))
			Expect(gemini.Calls()).To(BeEmpty())
		})

		It("should reject malformed messages", func() {
			resp := call(http.MethodPost, base+"/api/v1/messages", map[string]interface{}{
				"type": "ping",
			})
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("when the session is reset", func() {
		It("should persist the cleared state", func() {
			resp := call(http.MethodPost, base+"/api/v1/settings/reset-session", nil)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			cfg, err := store.Load(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.SessionBlocked).To(BeEmpty())
			Expect(cfg.FocusMode).To(Equal(domain.ModeManual))
		})
	})
})
