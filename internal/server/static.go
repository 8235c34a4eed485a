package server

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
)

// liveReloadScript reconnects to /ws and reloads the page on every rebuild.
const liveReloadScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "reload") { location.reload(); }
      if (msg.type === "build_error") { console.error("build failed:", msg.content); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

// staticHandler serves the build output with caching disabled. HTML pages get
// the live-reload client injected before </body>, and an error overlay while
// the last build is failing.
func (s *DevServer) staticHandler() http.Handler {
	root := s.config.Build.OutputDir
	files := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		clean := path.Clean("/" + r.URL.Path)
		name := clean
		if strings.HasSuffix(r.URL.Path, "/") {
			name = path.Join(clean, "index.html")
		}

		if strings.HasSuffix(name, ".html") {
			file := filepath.Join(root, filepath.FromSlash(name))
			if data, err := os.ReadFile(file); err == nil {
				info, _ := os.Stat(file)
				modTime := time.Time{}
				if info != nil {
					modTime = info.ModTime()
				}
				http.ServeContent(w, r, name, modTime, bytes.NewReader(injectLiveReload(data, s.LastBuildError())))
				return
			}
		}

		files.ServeHTTP(w, r)
	})
}

func injectLiveReload(page []byte, buildErr error) []byte {
	snippet := siteerrors.ErrorOverlay(buildErr) + liveReloadScript

	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(page, snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:idx]...)
	out = append(out, snippet...)
	return append(out, page[idx:]...)
}
