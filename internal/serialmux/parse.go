package serialmux

import (
	"strconv"
	"strings"
)

// ResponseKind classifies a line printed by GRBL.
type ResponseKind int

const (
	ResponseUnknown ResponseKind = iota
	// ResponseOK acknowledges one line.
	ResponseOK
	// ResponseError rejects one line: "error:N".
	ResponseError
	// ResponseAlarm reports a machine alarm: "ALARM:N". It also ends the
	// line being executed.
	ResponseAlarm
	// ResponseStatus is a status report: "<Idle|MPos:...>".
	ResponseStatus
	// ResponseMessage is a feedback message in square brackets.
	ResponseMessage
	// ResponseWelcome is the startup banner: "Grbl 1.1h ['$' for help]".
	ResponseWelcome
	// ResponseSetting echoes a setting: "$100=40.000".
	ResponseSetting
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseOK:
		return "ok"
	case ResponseError:
		return "error"
	case ResponseAlarm:
		return "alarm"
	case ResponseStatus:
		return "status"
	case ResponseMessage:
		return "message"
	case ResponseWelcome:
		return "welcome"
	case ResponseSetting:
		return "setting"
	}
	return "unknown"
}

// Terminal reports whether the response completes a sent line.
func (k ResponseKind) Terminal() bool {
	return k == ResponseOK || k == ResponseError || k == ResponseAlarm
}

// ClassifyResponse inspects one line read from the controller. For error
// and alarm responses code holds the numeric code, or -1 if the controller
// sent none.
func ClassifyResponse(line string) (kind ResponseKind, code int) {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	switch {
	case lower == "ok":
		return ResponseOK, 0
	case strings.HasPrefix(lower, "error"):
		return ResponseError, parseCode(line)
	case strings.HasPrefix(lower, "alarm"):
		return ResponseAlarm, parseCode(line)
	case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
		return ResponseStatus, 0
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return ResponseMessage, 0
	case strings.HasPrefix(lower, "grbl "):
		return ResponseWelcome, 0
	case strings.HasPrefix(line, "$") && strings.Contains(line, "="):
		return ResponseSetting, 0
	}
	return ResponseUnknown, 0
}

func parseCode(line string) int {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return -1
	}
	return n
}
