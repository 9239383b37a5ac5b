package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Authorization complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>&#10003; Authorization complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

const callbackErrorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>&#10007; Authorization failed</h1>
<p>%s</p>
</body>
</html>`

// CallbackServer is a one-shot loopback HTTP server that receives the OAuth
// redirect. It always releases its port, whether the flow succeeds, fails
// or times out.
type CallbackServer struct {
	expectedState string
	server        *http.Server
	listener      net.Listener
	codeChan      chan string
	errChan       chan error
}

// NewCallbackServer creates a callback server bound to the fixed loopback
// port, expecting the given CSRF state.
func NewCallbackServer(expectedState string) (*CallbackServer, error) {
	addr := fmt.Sprintf("localhost:%d", config.OAuthConfig.CallbackPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding callback port %d: %w", config.OAuthConfig.CallbackPort, err)
	}

	cs := &CallbackServer{
		expectedState: expectedState,
		listener:      listener,
		codeChan:      make(chan string, 1),
		errChan:       make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth-callback", cs.handleCallback)
	cs.server = &http.Server{Handler: mux}
	return cs, nil
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		cs.fail(w, fmt.Errorf("authorization denied: %s", errParam))
		return
	}
	if state := query.Get("state"); state != cs.expectedState {
		cs.fail(w, fmt.Errorf("state mismatch, possible CSRF"))
		return
	}
	code := query.Get("code")
	if code == "" {
		cs.fail(w, fmt.Errorf("callback carried no authorization code"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackSuccessPage)
	select {
	case cs.codeChan <- code:
	default:
	}
}

func (cs *CallbackServer) fail(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, callbackErrorPage, err.Error())
	select {
	case cs.errChan <- err:
	default:
	}
}

// WaitForCode serves until a code arrives, the context is cancelled or the
// timeout elapses, then shuts the server down.
func (cs *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	go func() {
		if err := cs.server.Serve(cs.listener); err != nil && err != http.ErrServerClosed {
			utils.Debug("callback server: %v", err)
		}
	}()
	defer cs.Shutdown()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-cs.codeChan:
		return code, nil
	case err := <-cs.errChan:
		return "", err
	case <-timer.C:
		return "", fmt.Errorf("timed out after %s waiting for the OAuth callback", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops the server and closes the listener.
func (cs *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.server.Shutdown(ctx)
}
