package file

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
)

// Env carries everything a filename template can reference
type Env struct {
	Now      time.Time
	Username string
	Realname string
	Hostname string
	// Dirs maps alias names (see SpecialDirNames) to absolute paths
	Dirs map[string]string
}

// CurrentEnv reads the environment of the running user
func CurrentEnv() Env {
	env := Env{
		Now:  time.Now(),
		Dirs: SpecialDirs(),
	}
	if u, err := user.Current(); err == nil {
		env.Username = u.Username
		env.Realname = u.Name
	}
	if env.Username == "" {
		env.Username = os.Getenv("USER")
	}
	if env.Realname == "" {
		env.Realname = env.Username
	}
	// GECOS may carry ",room,phone" after the name
	if i := strings.IndexByte(env.Realname, ','); i >= 0 {
		env.Realname = env.Realname[:i]
	}
	env.Hostname, _ = os.Hostname()
	return env
}

type dirPattern struct {
	name   string
	braced *regexp.Regexp
	bare   *regexp.Regexp
}

var (
	widthRe    = regexp.MustCompile(`(?i)\{width\}`)
	heightRe   = regexp.MustCompile(`(?i)\{height\}`)
	usernameRe = regexp.MustCompile(`(?i)\{username\}`)
	realnameRe = regexp.MustCompile(`(?i)\{realname\}`)
	hostnameRe = regexp.MustCompile(`(?i)\{hostname\}`)

	dirPatterns = func() []dirPattern {
		out := make([]dirPattern, 0, len(SpecialDirNames))
		for _, name := range SpecialDirNames {
			out = append(out, dirPattern{
				name:   name,
				braced: regexp.MustCompile(`(?i)\$\{` + name + `\}`),
				bare:   regexp.MustCompile(`(?i)\$` + name + `(\W|$)`),
			})
		}
		return out
	}()
)

// Screenshot renders the filename template for area with the current user
// environment. The result is always an absolute, cleaned path.
func Screenshot(area geometry.Rect, template string) string {
	return Render(area, template, CurrentEnv())
}

// Render is Screenshot with an explicit environment. Relative results are
// placed under the pictures directory.
func Render(area geometry.Rect, template string, env Env) string {
	out := Expand(area, template, env)
	if !filepath.IsAbs(out) {
		out = filepath.Join(env.Dirs["pictures"], out)
	}
	return filepath.Clean(out)
}

// Expand substitutes strftime directives and template tokens without
// resolving the result to a path. An empty template uses the default.
func Expand(area geometry.Rect, template string, env Env) string {
	if template == "" {
		template = config.DefaultTemplate
	}

	out := strftime.Format(template, env.Now)
	out = literal(widthRe, out, strconv.Itoa(area.Width))
	out = literal(heightRe, out, strconv.Itoa(area.Height))
	out = literal(usernameRe, out, env.Username)
	out = literal(realnameRe, out, env.Realname)
	out = literal(hostnameRe, out, env.Hostname)

	// braced form first so ${name} never half-matches as $name
	for _, p := range dirPatterns {
		out = literal(p.braced, out, env.Dirs[p.name])
	}
	for _, p := range dirPatterns {
		dir := env.Dirs[p.name]
		prefix := len(p.name) + 1
		out = p.bare.ReplaceAllStringFunc(out, func(m string) string {
			return dir + m[prefix:]
		})
	}
	return out
}

// literal replaces every match with s without $-expansion
func literal(re *regexp.Regexp, in, s string) string {
	return re.ReplaceAllLiteralString(in, s)
}
