// Package transport reads raw frames off the IPTS character device.
//
// This is the only layer in the daemon allowed to block on I/O and spawn
// goroutines tied to the caller's context; the core decoder is
// intentionally synchronous and knows nothing about cancellation.
package transport

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding (Linux _IOC macro), shared by every ioctl this
// package issues.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// hidiocGRDescSize is HIDIOCGRDESCSIZE = _IOR('H', 0x01, int): the size in
// bytes of the device's HID report descriptor. Used only by
// DescriptorSize.
func hidiocGRDescSize() uintptr {
	return ioc(iocRead, uint32('H'), 0x01, uint32(unsafe.Sizeof(int32(0))))
}

// DeviceReader reads raw byte buffers from an IPTS hidraw character
// device, non-blocking and poll-driven so ReadFrame can honor a context
// deadline. No length prefix is parsed: each ReadFrame returns what one
// read delivers.
type DeviceReader struct {
	path string
	file *os.File
	fd   int
	buf  *bufio.Reader
}

// Open opens path (typically /dev/ipts/<bus>/<dev>) for non-blocking reads.
func Open(path string) (*DeviceReader, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		f.Close()
		return nil, err
	}
	return &DeviceReader{
		path: path,
		file: f,
		fd:   fd,
		buf:  bufio.NewReaderSize(f, 64*1024),
	}, nil
}

// DescriptorSize queries the device's HID report descriptor size as a
// liveness check; devices that don't answer this ioctl are not IPTS
// hidraw nodes.
func (d *DeviceReader) DescriptorSize() (int, error) {
	var size int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), hidiocGRDescSize(), uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, errno
	}
	return int(size), nil
}

// ReadFrame blocks, polling the device fd, until a read returns data, ctx
// is canceled, or an I/O error occurs. It fills buf, which the caller owns,
// with the bytes of that single read and returns their count; the next
// call overwrites buf.
func (d *DeviceReader) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		pfd := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, 100) // ms; short so ctx cancellation is checked promptly
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, err
		}
		if n == 0 || pfd[0].Revents&unix.POLLIN == 0 {
			continue
		}

		read, err := d.buf.Read(buf)
		if err != nil {
			return 0, err
		}
		if read == 0 {
			continue
		}
		return read, nil
	}
}

// Close releases the underlying file descriptor.
func (d *DeviceReader) Close() error {
	return d.file.Close()
}

// ListCandidatePaths globs for IPTS device nodes under /dev/ipts and
// returns them in lexical order; cmd/iptsd uses the first one when no
// explicit device path is configured.
func ListCandidatePaths() ([]string, error) {
	matches, err := filepath.Glob("/dev/ipts/*/*")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New("no /dev/ipts/*/* character devices found")
	}
	sort.Strings(matches)
	return matches, nil
}
