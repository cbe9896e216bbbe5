//go:build !unix

package terminal

import "io"

func interruptibleInput(in io.Reader) (io.Reader, func(), func()) {
	return in, nil, nil
}
