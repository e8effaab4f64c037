//go:build windows

package winapi

import (
	"errors"
	"golang.org/x/sys/windows"
	"image"
	"image/color"
	"lobby-pilot/fault"
	"strings"
	"sync"
	"unsafe"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetParent                = user32.NewProc("GetParent")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procSetWindowTextW           = user32.NewProc("SetWindowTextW")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procShowWindow               = user32.NewProc("ShowWindow")
	procMoveWindow               = user32.NewProc("MoveWindow")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procPostMessageW             = user32.NewProc("PostMessageW")
	procSetCursorPos             = user32.NewProc("SetCursorPos")
	procMouseEvent               = user32.NewProc("mouse_event")
	procKeybdEvent               = user32.NewProc("keybd_event")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procSetProcessDPIAware       = user32.NewProc("SetProcessDPIAware")
	procGetDC                    = user32.NewProc("GetDC")
	procReleaseDC                = user32.NewProc("ReleaseDC")
	procGetPixel                 = gdi32.NewProc("GetPixel")
)

const (
	swRestore         = 9
	wmKeyDown         = 0x0100
	wmKeyUp           = 0x0101
	mouseLeftDown     = 0x0002
	mouseLeftUp       = 0x0004
	keyEventKeyUp     = 0x0002
	keyStateDown      = 0x8000
	clrInvalid        = 0xFFFFFFFF
	stillActive       = 259
	maxWindowTitleLen = 512
)

type win32Platform struct{}

func New() (Platform, error) {
	if err := user32.Load(); err != nil {
		return nil, errors.Join(ErrUnsupported, err)
	}
	if err := gdi32.Load(); err != nil {
		return nil, errors.Join(ErrUnsupported, err)
	}
	return &win32Platform{}, nil
}

func (p *win32Platform) SetDPIAware() {
	_, _, _ = procSetProcessDPIAware.Call()
}

// EnumWindows shares one callback between calls; windows.NewCallback slots are never released.
var (
	enumMu       sync.Mutex
	enumHandles  []Handle
	enumCallback = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		enumHandles = append(enumHandles, Handle(hwnd))
		return 1
	})
)

func (p *win32Platform) EnumWindows() ([]Window, error) {
	enumMu.Lock()
	enumHandles = enumHandles[:0]
	r, _, err := procEnumWindows.Call(enumCallback, 0)
	handles := append([]Handle(nil), enumHandles...)
	enumMu.Unlock()

	if r == 0 {
		return nil, fault.Unavailable("EnumWindows", 0, err)
	}

	result := make([]Window, 0, len(handles))
	for _, h := range handles {
		w := Window{Handle: h}

		visible, _, _ := procIsWindowVisible.Call(uintptr(h))
		w.Visible = visible != 0

		parent, _, _ := procGetParent.Call(uintptr(h))
		w.HasParent = parent != 0

		var pid uint32
		_, _, _ = procGetWindowThreadProcessId.Call(uintptr(h), uintptr(unsafe.Pointer(&pid)))
		w.PID = pid

		w.Title = windowText(h)

		if rect, rectErr := p.WindowRect(h); rectErr == nil {
			w.Rect = rect
		}

		result = append(result, w)
	}
	return result, nil
}

func windowText(h Handle) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	if n == 0 {
		return ""
	}
	if n > maxWindowTitleLen {
		n = maxWindowTitleLen
	}
	buf := make([]uint16, n+1)
	_, _, _ = procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func (p *win32Platform) IsWindow(h Handle) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(uintptr(h))
	return r != 0
}

type win32Rect struct {
	Left, Top, Right, Bottom int32
}

func (p *win32Platform) WindowRect(h Handle) (Rect, error) {
	var rc win32Rect
	r, _, err := procGetWindowRect.Call(uintptr(h), uintptr(unsafe.Pointer(&rc)))
	if r == 0 {
		return Rect{}, fault.Unavailable("GetWindowRect", uintptr(h), err)
	}
	return Rect{
		Left:   int(rc.Left),
		Top:    int(rc.Top),
		Width:  int(rc.Right - rc.Left),
		Height: int(rc.Bottom - rc.Top),
	}, nil
}

func (p *win32Platform) Restore(h Handle) error {
	if !p.IsWindow(h) {
		return fault.Unavailable("ShowWindow", uintptr(h), nil)
	}
	// ShowWindow returns the previous visibility, not a success flag.
	_, _, _ = procShowWindow.Call(uintptr(h), swRestore)
	return nil
}

func (p *win32Platform) Move(h Handle, rect Rect) error {
	r, _, err := procMoveWindow.Call(
		uintptr(h),
		uintptr(rect.Left),
		uintptr(rect.Top),
		uintptr(rect.Width),
		uintptr(rect.Height),
		1,
	)
	if r == 0 {
		return fault.Unavailable("MoveWindow", uintptr(h), err)
	}
	return nil
}

func (p *win32Platform) SetTitle(h Handle, title string) error {
	text, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return fault.Unavailable("SetWindowText", uintptr(h), err)
	}
	r, _, callErr := procSetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(text)))
	if r == 0 {
		return fault.Unavailable("SetWindowText", uintptr(h), callErr)
	}
	return nil
}

func (p *win32Platform) BringToTop(h Handle) error {
	r, _, err := procBringWindowToTop.Call(uintptr(h))
	if r == 0 {
		return fault.Unavailable("BringWindowToTop", uintptr(h), err)
	}
	return nil
}

func (p *win32Platform) SetForeground(h Handle) error {
	r, _, err := procSetForegroundWindow.Call(uintptr(h))
	if r == 0 {
		return fault.Unavailable("SetForegroundWindow", uintptr(h), err)
	}
	return nil
}

func (p *win32Platform) ForegroundWindow() Handle {
	r, _, _ := procGetForegroundWindow.Call()
	return Handle(r)
}

func (p *win32Platform) WindowThreadID(h Handle) uint32 {
	if h == 0 {
		return 0
	}
	tid, _, _ := procGetWindowThreadProcessId.Call(uintptr(h), 0)
	return uint32(tid)
}

func (p *win32Platform) AttachThreadInput(from, to uint32, attach bool) error {
	var flag uintptr
	if attach {
		flag = 1
	}
	r, _, err := procAttachThreadInput.Call(uintptr(from), uintptr(to), flag)
	if r == 0 {
		return fault.Unavailable("AttachThreadInput", 0, err)
	}
	return nil
}

func (p *win32Platform) PostKey(h Handle, vk uint16, down bool) error {
	msg := uintptr(wmKeyUp)
	if down {
		msg = wmKeyDown
	}
	r, _, err := procPostMessageW.Call(uintptr(h), msg, uintptr(vk), 0)
	if r == 0 {
		return fault.Unavailable("PostMessage", uintptr(h), err)
	}
	return nil
}

func (p *win32Platform) SetCursorPos(x, y int) error {
	r, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if r == 0 {
		return fault.Unavailable("SetCursorPos", 0, err)
	}
	return nil
}

func (p *win32Platform) MouseButton(down bool) error {
	flags := uintptr(mouseLeftUp)
	if down {
		flags = mouseLeftDown
	}
	// mouse_event has no return value.
	_, _, _ = procMouseEvent.Call(flags, 0, 0, 0, 0)
	return nil
}

func (p *win32Platform) KeyChord(vks ...uint16) error {
	for _, vk := range vks {
		_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
	}
	for i := len(vks) - 1; i >= 0; i-- {
		_, _, _ = procKeybdEvent.Call(uintptr(vks[i]), 0, keyEventKeyUp, 0)
	}
	return nil
}

func (p *win32Platform) KeyPressed(vk uint16) bool {
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return r&keyStateDown != 0
}

func (p *win32Platform) Capture(x, y, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fault.Unavailable("GetPixel", 0, errors.New("empty capture region"))
	}

	hdc, _, err := procGetDC.Call(0)
	if hdc == 0 {
		return nil, fault.Unavailable("GetDC", 0, err)
	}
	defer func() {
		_, _, _ = procReleaseDC.Call(0, hdc)
	}()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			ref, _, _ := procGetPixel.Call(hdc, uintptr(x+dx), uintptr(y+dy))
			if ref == clrInvalid {
				return nil, fault.Unavailable("GetPixel", 0, nil)
			}
			img.SetRGBA(dx, dy, color.RGBA{
				R: uint8(ref),
				G: uint8(ref >> 8),
				B: uint8(ref >> 16),
				A: 0xFF,
			})
		}
	}
	return img, nil
}

func (p *win32Platform) ProcessAlive(pid uint32) bool {
	if pid == 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return false
	}
	defer func() {
		_ = windows.CloseHandle(h)
	}()

	var code uint32
	if err = windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *win32Platform) ProcessesByName(name string) ([]uint32, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fault.Unavailable("CreateToolhelp32Snapshot", 0, err)
	}
	defer func() {
		_ = windows.CloseHandle(snapshot)
	}()

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var pids []uint32
	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		if strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), name) {
			pids = append(pids, entry.ProcessID)
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return pids, fault.Unavailable("Process32Next", 0, err)
	}
	return pids, nil
}
