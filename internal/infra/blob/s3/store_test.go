package s3

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gradebook/internal/blob/core"
	"gradebook/internal/infra/blob/blobtest"
)

const testBucket = "mock-bucket"

type object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeS3 serves the path-style subset of the S3 API the store uses.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string]object
	pageSize  int
	listCalls int
	failPut   bool
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string]object)} }

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(req.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != testBucket {
		return respond(http.StatusNotFound, nil, nil), nil
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"etag-` + key + `"`},
			"Last-Modified":  {time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
		}
		for k, v := range obj.metadata {
			h.Set("X-Amz-Meta-"+k, v)
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, h, nil), nil
		}
		return respond(http.StatusOK, h, obj.body), nil
	case http.MethodPut:
		if f.failPut {
			return respond(http.StatusForbidden, nil, nil), nil
		}
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		md := map[string]string{}
		for k, v := range req.Header {
			if name, ok := strings.CutPrefix(strings.ToLower(k), "x-amz-meta-"); ok {
				md[name] = v[0]
			}
		}
		f.objects[key] = object{body: body, contentType: req.Header.Get("Content-Type"), metadata: md}
		return respond(http.StatusOK, http.Header{"Etag": {`"etag"`}}, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

type listResult struct {
	XMLName               xml.Name      `xml:"ListBucketResult"`
	IsTruncated           bool          `xml:"IsTruncated"`
	NextContinuationToken string        `xml:"NextContinuationToken,omitempty"`
	Contents              []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

func (f *fakeS3) list(req *http.Request) *http.Response {
	f.listCalls++
	q := req.URL.Query()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, q.Get("prefix")) && k >= q.Get("continuation-token") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var res listResult
	if f.pageSize > 0 && len(keys) > f.pageSize {
		res.IsTruncated = true
		res.NextContinuationToken = keys[f.pageSize]
		keys = keys[:f.pageSize]
	}
	for _, k := range keys {
		res.Contents = append(res.Contents, listContent{Key: k, Size: len(f.objects[k].body), LastModified: "2025-03-10T09:00:00Z"})
	}
	body, _ := xml.Marshal(res)
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, body)
}

func respond(status int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

// decodeChunked strips aws-chunked framing: <hex>[;ext]\r\n<data>\r\n ... 0\r\n.
func decodeChunked(b []byte) []byte {
	var out []byte
	for len(b) > 0 {
		line, rest, ok := bytes.Cut(b, []byte("\r\n"))
		if !ok {
			break
		}
		sizeHex, _, _ := bytes.Cut(line, []byte(";"))
		n, err := strconv.ParseInt(string(sizeHex), 16, 64)
		if err != nil || n == 0 || int64(len(rest)) < n {
			break
		}
		out = append(out, rest[:n]...)
		b = bytes.TrimPrefix(rest[n:], []byte("\r\n"))
	}
	return out
}

func newTestStore(t *testing.T, fake *fakeS3) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          testBucket,
		Endpoint:        "http://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, newTestStore(t, newFakeS3()))
}

func TestListPaginates(t *testing.T) {
	fake := newFakeS3()
	fake.pageSize = 1
	s := newTestStore(t, fake)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Put(ctx, fmt.Sprintf("lessons/%d", i), strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	infos, err := s.List(ctx, "lessons/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || fake.listCalls != 3 {
		t.Fatalf("expected 3 items over 3 pages, got %d items in %d calls", len(infos), fake.listCalls)
	}
}

func TestPutFailureIsWrapped(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = true
	s := newTestStore(t, fake)
	_, err := s.Put(context.Background(), "k", strings.NewReader("x"), core.PutOptions{})
	if err == nil || errors.Is(err, core.ErrNotFound) || !strings.Contains(err.Error(), "put object k") {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestPresignURL(t *testing.T) {
	s := newTestStore(t, newFakeS3())
	url, err := s.PresignURL(context.Background(), "lessons/l1/plan.pdf", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "/mock-bucket/lessons/l1/plan.pdf") || !strings.Contains(url, "X-Amz-Signature=") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("unexpected presigned url %s", url)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s := newTestStore(t, newFakeS3())
	if s.Driver() != core.DriverS3 || s.Bucket() != testBucket {
		t.Fatalf("unexpected store identity")
	}
}
