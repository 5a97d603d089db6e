package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/codearena/apiserver/types"
)

var testcaseFilenamePattern = regexp.MustCompile(`^\d+\.(in|out)$`)

// maxTestcaseFileSize bounds a single extracted test case file.
const maxTestcaseFileSize = 8 << 20

// BundleFile is an uploaded test case archive.
type BundleFile struct {
	Filename string
	Data     []byte
}

// ParsedBundle is the result of decoding a test case archive.
type ParsedBundle struct {
	Cases     []types.TestCase
	ObjectKey string
	SHA256    string
}

// ParseTestcaseBundle decodes a tar.gz archive of flat N.in/N.out pairs
// into ordered test cases. Orders must be consecutive starting at 0 and
// every input must have a matching output.
func ParseTestcaseBundle(filename string, data []byte) (ParsedBundle, error) {
	if len(data) == 0 {
		return ParsedBundle{}, errors.New("empty bundle data")
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])

	lower := strings.ToLower(strings.TrimSpace(filename))
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ParsedBundle{}, errors.New("zip bundles are not supported")
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
	default:
		return ParsedBundle{}, errors.New("unsupported bundle format")
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return ParsedBundle{}, errors.New("invalid tar.gz bundle")
	}
	defer gr.Close()

	cases, err := readTestcasesFromTarGz(tar.NewReader(gr))
	if err != nil {
		return ParsedBundle{}, err
	}

	return ParsedBundle{
		Cases:     cases,
		ObjectKey: "testcase-bundles/" + digest + ".tar.gz",
		SHA256:    digest,
	}, nil
}

func readTestcasesFromTarGz(tr *tar.Reader) ([]types.TestCase, error) {
	type pair struct {
		in  *string
		out *string
	}
	pairs := make(map[int]*pair)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.New("invalid tar.gz bundle")
		}
		if header.FileInfo().IsDir() {
			continue
		}
		if !header.FileInfo().Mode().IsRegular() {
			return nil, errors.New("bundle contains unsupported entries")
		}
		if err := validateBundleFilename(header.Name); err != nil {
			return nil, err
		}

		base := path.Base(path.Clean(header.Name))
		order, ext, err := parseTestcaseFilename(base)
		if err != nil {
			return nil, err
		}

		raw, err := io.ReadAll(io.LimitReader(tr, maxTestcaseFileSize+1))
		if err != nil {
			return nil, errors.New("invalid tar.gz bundle")
		}
		if len(raw) > maxTestcaseFileSize {
			return nil, fmt.Errorf("testcase file too large: %s", base)
		}
		content := string(raw)

		p := pairs[order]
		if p == nil {
			p = &pair{}
			pairs[order] = p
		}
		switch ext {
		case "in":
			if p.in != nil {
				return nil, fmt.Errorf("duplicate testcase input: %d.in", order)
			}
			p.in = &content
		case "out":
			if p.out != nil {
				return nil, fmt.Errorf("duplicate testcase output: %d.out", order)
			}
			p.out = &content
		default:
			return nil, fmt.Errorf("invalid testcase filename: %s", base)
		}
	}

	if len(pairs) == 0 {
		return nil, errors.New("bundle has no testcases")
	}

	orders := make([]int, 0, len(pairs))
	for order, p := range pairs {
		if p.in == nil || p.out == nil {
			return nil, fmt.Errorf("testcase %d must have both .in and .out files", order)
		}
		orders = append(orders, order)
	}
	sort.Ints(orders)
	for expected, order := range orders {
		if order != expected {
			return nil, errors.New("testcase order must be consecutive")
		}
	}

	cases := make([]types.TestCase, 0, len(orders))
	for _, order := range orders {
		p := pairs[order]
		cases = append(cases, types.TestCase{
			Input:  *p.in,
			Output: *p.out,
		})
	}
	return cases, nil
}

func parseTestcaseFilename(base string) (int, string, error) {
	ext := strings.TrimPrefix(path.Ext(base), ".")
	name := strings.TrimSuffix(base, "."+ext)
	if ext == "" {
		return 0, "", fmt.Errorf("invalid testcase filename: %s", base)
	}
	order, err := strconv.Atoi(name)
	if err != nil || order < 0 {
		return 0, "", fmt.Errorf("invalid testcase filename: %s", base)
	}
	return order, ext, nil
}

func validateBundleFilename(name string) error {
	clean := path.Clean(name)
	if clean == "." {
		return errors.New("invalid testcase filename")
	}
	base := path.Base(clean)
	if base != clean {
		return errors.New("bundle must not contain directories")
	}
	if strings.Contains(base, `\`) {
		return errors.New("invalid testcase filename")
	}
	if !testcaseFilenamePattern.MatchString(base) {
		return fmt.Errorf("invalid testcase filename: %s", base)
	}
	return nil
}
