package validation

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

//go:embed common_passwords.txt
var commonPasswordsFile string

var gzipMagic = []byte{0x1f, 0x8b}

// CommonList is a set of passwords rejected as too common. Entries are
// compared case-insensitively after trimming whitespace.
type CommonList struct {
	set map[string]struct{}
}

// defaultCommonList is parsed once on first use.
var defaultCommonList = sync.OnceValue(func() *CommonList {
	l, err := ParseCommonList(strings.NewReader(commonPasswordsFile))
	if err != nil {
		panic(fmt.Sprintf("parse embedded common password list: %v", err))
	}
	return l
})

// DefaultCommonList returns the list embedded in the binary.
func DefaultCommonList() *CommonList {
	return defaultCommonList()
}

// ParseCommonList reads one password per line. Blank lines and lines starting
// with '#' are skipped. Gzip input, as shipped by Django's password
// validation, is detected and decompressed.
func ParseCommonList(r io.Reader) (*CommonList, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip password list: %w", err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	set := make(map[string]struct{}, 4096)
	sc := bufio.NewScanner(br)
	for sc.Scan() {
		line := normalize(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read password list: %w", err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("password list is empty")
	}
	return &CommonList{set: set}, nil
}

// LoadCommonListFile parses the list at path.
func LoadCommonListFile(path string) (*CommonList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open password list: %w", err)
	}
	defer f.Close()

	l, err := ParseCommonList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Contains reports whether password is on the list. A nil list uses the
// embedded one.
func (l *CommonList) Contains(password string) bool {
	if l == nil {
		l = DefaultCommonList()
	}
	_, ok := l.set[normalize(password)]
	return ok
}

// Len returns the number of entries.
func (l *CommonList) Len() int {
	if l == nil {
		return DefaultCommonList().Len()
	}
	return len(l.set)
}

// IsCommon reports whether password appears in the embedded list.
func IsCommon(password string) bool {
	return DefaultCommonList().Contains(password)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
