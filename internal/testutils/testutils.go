//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

// Payload is the synthetic field content served for one
// (variable, member, lead) combination.
func Payload(variable string, member, lead int) string {
	return fmt.Sprintf("%s-m%02d-f%03d;", variable, member, lead)
}

// ForecastServer simulates the remote forecast store: per lead time one
// blob with range-request support plus one line-delimited JSON index
// describing the byte layout. URL scheme: /f<lead>.grib2 and
// /f<lead>.index, matching the template /f{lead}.grib2.
type ForecastServer struct {
	*httptest.Server

	Variables []string
	Members   []int
}

// URLTemplate returns the blob URL template pointing at this server.
func (s *ForecastServer) URLTemplate() string {
	return s.URL + "/{date}/{cycle}/f{lead}.grib2"
}

// Blob returns the full blob content for one lead time.
func (s *ForecastServer) Blob(lead int) []byte {
	var b strings.Builder
	for _, m := range s.Members {
		for _, v := range s.Variables {
			b.WriteString(Payload(v, m, lead))
		}
	}
	return []byte(b.String())
}

// Index returns the index resource for one lead time.
func (s *ForecastServer) Index(lead int) []byte {
	var b strings.Builder
	offset := 0
	for _, m := range s.Members {
		for _, v := range s.Variables {
			length := len(Payload(v, m, lead))
			if m == 0 {
				fmt.Fprintf(&b, `{"type": "cf", "param": %q, "step": "%d", "_offset": %d, "_length": %d}`+"\n",
					v, lead, offset, length)
			} else {
				fmt.Fprintf(&b, `{"type": "pf", "param": %q, "step": "%d", "number": "%d", "_offset": %d, "_length": %d}`+"\n",
					v, lead, m, offset, length)
			}
			offset += length
		}
	}
	return []byte(b.String())
}

// StartForecastServer starts an HTTP server serving synthetic forecast
// blobs and their indexes.
func StartForecastServer(t *testing.T, variables []string, members []int) *ForecastServer {
	t.Helper()

	s := &ForecastServer{Variables: variables, Members: members}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := path.Base(r.URL.Path)

		var lead int
		switch {
		case strings.HasSuffix(base, ".index"):
			if _, err := fmt.Sscanf(base, "f%d.index", &lead); err != nil {
				http.NotFound(w, r)
				return
			}
			w.Write(s.Index(lead))
		case strings.HasSuffix(base, ".grib2"):
			if _, err := fmt.Sscanf(base, "f%d.grib2", &lead); err != nil {
				http.NotFound(w, r)
				return
			}
			serveRange(w, r, s.Blob(lead))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func serveRange(w http.ResponseWriter, r *http.Request, data []byte) {
	size := int64(len(data))

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(data)
		return
	}

	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeHeader, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)
	if end >= size {
		end = size - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	// Network for minio and mc to communicate
	networkName := fmt.Sprintf("ecfetch-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	minioReq := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Networks:     []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {"minio"},
		},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: minioReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucketWithMC(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}

	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	// gocloud reads credentials from the environment
	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minioContainer,
		BucketURL: bucketURL,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucketWithMC creates a bucket using a separate minio/mc container.
func createBucketWithMC(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mcReq := testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{networkName},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{
			fmt.Sprintf(
				"/usr/bin/mc config host add myminio http://minio:9000 %s %s && "+
					"/usr/bin/mc mb myminio/%s && "+
					"/usr/bin/mc policy set download myminio/%s; "+
					"exit 0",
				accessKey, secretKey, bucketName, bucketName,
			),
		},
		WaitingFor: wait.ForExit(),
	}

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mcReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}
