package file

import (
	"os"
	"strings"

	"github.com/adrg/xdg"
)

// SpecialDirNames lists the path aliases usable in templates as $name or ${name}
var SpecialDirNames = []string{
	"home", "tmp", "cache", "config", "data",
	"desktop", "documents", "download", "music", "pictures",
	"public_share", "templates", "videos",
}

// SpecialDir returns the absolute path of a well-known user directory, or ""
// for an unknown name. An empty name means home.
func SpecialDir(name string) string {
	switch strings.ToLower(name) {
	case "", "home":
		return xdg.Home
	case "root":
		return "/"
	case "tmp":
		return os.TempDir()
	case "cache":
		return xdg.CacheHome
	case "config":
		return xdg.ConfigHome
	case "data":
		return xdg.DataHome
	case "desktop":
		return xdg.UserDirs.Desktop
	case "documents":
		return xdg.UserDirs.Documents
	case "download":
		return xdg.UserDirs.Download
	case "music":
		return xdg.UserDirs.Music
	case "pictures":
		return xdg.UserDirs.Pictures
	case "public_share":
		return xdg.UserDirs.PublicShare
	case "templates":
		return xdg.UserDirs.Templates
	case "videos":
		return xdg.UserDirs.Videos
	}
	return ""
}

// SpecialDirs resolves every alias in SpecialDirNames
func SpecialDirs() map[string]string {
	dirs := make(map[string]string, len(SpecialDirNames))
	for _, name := range SpecialDirNames {
		dirs[name] = SpecialDir(name)
	}
	return dirs
}
