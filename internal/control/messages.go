package control

import (
	"errors"
	"fmt"
	"strings"
)

// Messages is the presentation table for audit log text and rejection
// reasons. It has no influence on control flow.
type Messages struct {
	Actions       map[Action]string
	Manual        string // format: action description
	Scheduled     string // format: schedule name, action description
	Heartbeat     string // format: source, status
	UnknownSource string
	EmptyStatus   string
	AlreadyClosed string
	AlreadyOpen   string
	UnknownAction string
}

// Chinese matches the wording the device firmware and dashboard were built with.
var Chinese = Messages{
	Actions: map[Action]string{
		ActionUp:   "上升",
		ActionDown: "下降",
		ActionStop: "停止/解锁",
		ActionLock: "锁定",
	},
	Manual:        "手动执行 - 卷帘门开始%s",
	Scheduled:     "定时任务 \"%s\" - 卷帘门开始%s",
	Heartbeat:     "设备心跳 - 来自IP %s - 状态: %s",
	UnknownSource: "ESP8266",
	EmptyStatus:   "正常",
	AlreadyClosed: "卷帘门已关闭，无法再下降",
	AlreadyOpen:   "卷帘门已打开，无法再上升",
	UnknownAction: "无法识别的命令",
}

var English = Messages{
	Actions: map[Action]string{
		ActionUp:   "raising",
		ActionDown: "lowering",
		ActionStop: "stopping/unlocking",
		ActionLock: "locking",
	},
	Manual:        "Manual - shutter %s",
	Scheduled:     "Schedule \"%s\" - shutter %s",
	Heartbeat:     "Device heartbeat - from %s - status: %s",
	UnknownSource: "device",
	EmptyStatus:   "ok",
	AlreadyClosed: "the shutter is already closed and cannot go down",
	AlreadyOpen:   "the shutter is already open and cannot go up",
	UnknownAction: "not a recognized command",
}

// MessagesFor returns the table for a locale, defaulting to Chinese.
func MessagesFor(locale string) Messages {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return English
	}
	return Chinese
}

// Describe returns the human-readable form of an action.
func (m Messages) Describe(a Action) string {
	if desc, ok := m.Actions[a]; ok {
		return desc
	}
	return string(a)
}

// ManualMessage is the log text for an accepted caller command.
func (m Messages) ManualMessage(a Action) string {
	return fmt.Sprintf(m.Manual, m.Describe(a))
}

// ScheduledMessage is the log text for a fired trigger.
func (m Messages) ScheduledMessage(name string, a Action) string {
	return fmt.Sprintf(m.Scheduled, name, m.Describe(a))
}

// HeartbeatMessage is the log text for a device heartbeat.
func (m Messages) HeartbeatMessage(ip, status string) string {
	if ip == "" {
		ip = m.UnknownSource
	}
	return fmt.Sprintf(m.Heartbeat, ip, status)
}

// Reason turns a dispatch error into the text returned to callers.
func (m Messages) Reason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyClosed):
		return m.AlreadyClosed
	case errors.Is(err, ErrAlreadyOpen):
		return m.AlreadyOpen
	case errors.Is(err, ErrUnknownAction):
		return m.UnknownAction
	case err == nil:
		return ""
	}
	return err.Error()
}
