package bot

// Code is a two-digit mIRC color number.
type Code string

// mIRC palette.
const (
	White      Code = "00"
	Black      Code = "01"
	Blue       Code = "02"
	Green      Code = "03"
	Red        Code = "04"
	Brown      Code = "05"
	Purple     Code = "06"
	Orange     Code = "07"
	Yellow     Code = "08"
	LightGreen Code = "09"
	Cyan       Code = "10"
	LightCyan  Code = "11"
	LightBlue  Code = "12"
	Pink       Code = "13"
	Grey       Code = "14"
	LightGrey  Code = "15"
)

// Formatting control characters.
const (
	Bold      = "\x02"
	ColorChar = "\x03"
	Italic    = "\x1d"
	Underline = "\x1f"
	Reverse   = "\x16"
	Reset     = "\x0f"
)

// Color wraps text in a foreground and optional background color, then resets formatting.
func Color(text string, fg Code, bg ...Code) string {
	if len(bg) > 0 && bg[0] != "" {
		return ColorChar + string(fg) + "," + string(bg[0]) + text + Reset
	}
	return ColorChar + string(fg) + text + Reset
}

// errorText formats a user-facing failure as "[!] data (reason)".
func errorText(data, reason string) string {
	out := "[" + Color("!", Red) + "] " + data
	if reason != "" {
		out += " " + Color("("+reason+")", Grey)
	}
	return out
}
