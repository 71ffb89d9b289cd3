package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/programme-lv/judgehost/internal/server"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	var seenUname, seenPassword string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			require.NoError(t, r.ParseForm())
			seenUname = r.PostForm.Get("uname")
			seenPassword = r.PostForm.Get("password")
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "secret"})
		case "/judge/files":
			c, err := r.Cookie("sid")
			if err != nil || c.Value != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "judge0", "hunter2", discardLogger())
	require.NoError(t, err)

	require.NoError(t, c.Login(context.Background()))
	require.Equal(t, "judge0", seenUname)
	require.Equal(t, "hunter2", seenPassword)

	// probe passes with the cookie in the jar
	require.NoError(t, c.Ensure(context.Background()))
}

func TestEnsureReloginsOnRedirect(t *testing.T) {
	logins := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/judge/files":
			if _, err := r.Cookie("sid"); err != nil {
				w.Header().Set("Location", "/login")
				w.WriteHeader(http.StatusFound)
				return
			}
		case "/login":
			logins++
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s"})
		}
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "u", "p", discardLogger())
	require.NoError(t, err)

	require.NoError(t, c.Ensure(context.Background()))
	require.Equal(t, 1, logins)

	// second probe finds the cookie valid, no second login
	require.NoError(t, c.Ensure(context.Background()))
	require.Equal(t, 1, logins)
}

func TestFileLinksRetriesOnceAfterRelogin(t *testing.T) {
	logins := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			logins++
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s"})
		case "/d/system/judge/files":
			if _, err := r.Cookie("sid"); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			var req struct {
				Pid   string   `json:"pid"`
				Files []string `json:"files"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "1001", req.Pid)

			links := map[string]string{}
			for _, f := range req.Files {
				links[f] = "http://files.local/" + f
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"links": links})
		}
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "u", "p", discardLogger())
	require.NoError(t, err)

	links, err := c.FileLinks(context.Background(), "system", "1001", []string{"a.in", "a.out"})
	require.NoError(t, err)
	require.Equal(t, 1, logins)
	require.Len(t, links, 2)
	require.Equal(t, "http://files.local/a.in", links["a.in"])
}

func TestFileLinksAbsentLinksMeansNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "u", "p", discardLogger())
	require.NoError(t, err)

	links, err := c.FileLinks(context.Background(), "d", "p", []string{"x"})
	require.NoError(t, err)
	require.Nil(t, links)
}

func TestGetDeadlineComesFromContextOnly(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("payload"))
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "u", "p", discardLogger())
	require.NoError(t, err)

	// slower than the deadline on ctx: fails
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, ts.URL+"/slow")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// within the deadline: succeeds, even though the transfer is slow
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	resp, err := c.Get(ctx2, ts.URL+"/slow")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))
}

func TestGetFollowsRedirectingDownloadLinks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signed":
			http.Redirect(w, r, "/file", http.StatusFound)
		case "/file":
			_, _ = w.Write([]byte("test data"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c, err := server.NewClient(ts.URL, "u", "p", discardLogger())
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), ts.URL+"/signed")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "test data", string(body))
}
