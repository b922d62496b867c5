package platform

import (
	"path/filepath"
	"runtime"
	"strings"
)

// ShellEscape quotes s for safe inclusion as a single argument in a shell
// command string, as used for the remote mkdir/find/mv/cleanup commands.
func ShellEscape(s string) string {
	if runtime.GOOS == "windows" {
		return shellEscapeWindows(s)
	}
	return shellEscapePOSIX(s)
}

// shellEscapePOSIX wraps s in single quotes, escaping any embedded single
// quote as '\'' (close quote, escaped quote, reopen quote).
func shellEscapePOSIX(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// shellEscapeWindows wraps s in double quotes, escaping embedded double
// quotes and the backslashes that would otherwise escape them.
func shellEscapeWindows(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for _, r := range s {
		switch r {
		case '\\':
			backslashes++
			b.WriteRune(r)
		case '"':
			for ; backslashes > 0; backslashes-- {
				b.WriteByte('\\')
			}
			b.WriteString(`\"`)
		default:
			backslashes = 0
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ToRemoteSlash converts a local path to a POSIX-style remote path,
// normalizing Windows drive letters to lowercase and backslashes to
// forward slashes.
func ToRemoteSlash(path string) string {
	slashed := filepath.ToSlash(path)
	if len(slashed) >= 2 && slashed[1] == ':' {
		slashed = strings.ToLower(slashed[:1]) + slashed[1:]
	}
	return slashed
}
