// internal/worker/archiver.go
package worker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// uploadedMarker 는 업로드 완료 표시 파일 suffix.
// 아티팩트 자체는 durable record 라서 업로드 후에도 지우지 않고,
// 대신 marker 로 backlog 에서 제외한다.
const uploadedMarker = ".uploaded"

// Archiver
// ------------------------------------------------------------
// 로컬 analytics 아티팩트를 S3 로 올리는 선택적 구성 요소.
// ARCHIVE_BUCKET 이 비어 있으면 생성되지 않는다.
//
// 업로드 실패는 스냅샷 파이프라인에 전파되지 않는다: 아티팩트는
// 디스크에 그대로 남고, 다음 스케줄러 tick 의 backlog 스캔이
// 가장 오래된 것부터 다시 시도한다.
//
// SDK retry 는 0 으로 고정하고 재시도는 S3AppRetries 횟수의
// 애플리케이션 레벨 backoff 로만 수행한다.
type Archiver struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *s3.Client
	dir     string // 로컬 analytics 디렉토리
}

func NewArchiver(cfg config.Config, m *metrics.Metrics, dir string) (*Archiver, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(
		context.TODO(),
		awsCfgLib.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	return &Archiver{
		cfg:     cfg,
		metrics: m,
		client:  client,
		dir:     dir,
	}, nil
}

// ProcessBacklog 은 아직 업로드되지 않은 아티팩트를 오래된 것부터
// 최대 n개 업로드한다. 실패한 파일은 다음 호출에서 다시 시도된다.
func (a *Archiver) ProcessBacklog(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		name := a.pickOldestPending()
		if name == "" {
			return
		}
		if !a.uploadOne(ctx, name) {
			// 같은 파일을 n번 두드리지 않는다. 다음 tick 에 재시도.
			return
		}
	}
}

// uploadOne 은 아티팩트 1개를 업로드하고 marker 를 남긴다.
func (a *Archiver) uploadOne(ctx context.Context, name string) bool {
	path := filepath.Join(a.dir, name)

	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("artifact", name).Msg("archive: open failed")
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false
	}

	key := BuildObjectKey(a.cfg.ArchivePrefix, name)
	if err := a.uploadWithRetry(ctx, key, f, info.Size()); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive: upload failed, artifact kept local")
		return false
	}

	if err := os.WriteFile(path+uploadedMarker, nil, 0o644); err != nil {
		log.Warn().Err(err).Str("artifact", name).Msg("archive: marker write failed")
	}
	atomic.AddInt64(&a.metrics.ArchiveUploadedTotal, 1)
	log.Info().Str("key", key).Msg("archive: uploaded")
	return true
}

// pickOldestPending 은 marker 가 없는 가장 오래된 아티팩트명을 찾는다.
// 파일명이 <unix>_... 형태이므로 문자열 정렬이 곧 시간 정렬이다.
func (a *Archiver) pickOldestPending() string {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return ""
	}

	uploaded := make(map[string]struct{})
	var files []string

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "" || name[0] == '.' {
			continue
		}
		if strings.HasSuffix(name, uploadedMarker) {
			uploaded[strings.TrimSuffix(name, uploadedMarker)] = struct{}{}
			continue
		}
		files = append(files, name)
	}

	sort.Strings(files)
	for _, name := range files {
		if _, done := uploaded[name]; !done {
			return name
		}
	}
	return ""
}

// uploadWithRetry 는 재시도마다 Seek(0) 으로 rewind 하며
// exponential backoff 로 PutObject 를 시도한다. ctx 취소 시 즉시 중단.
func (a *Archiver) uploadWithRetry(ctx context.Context, key string, f io.ReadSeeker, size int64) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= a.cfg.S3AppRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}

		if err := a.putObject(ctx, key, f, size); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&a.metrics.ArchiveUploadErrorsTotal, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

// putObject 는 1회 시도만 담당한다. 시도당 S3Timeout 이 걸린다.
func (a *Archiver) putObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ctx2, cancel := context.WithTimeout(ctx, a.cfg.S3Timeout)
	defer cancel()

	_, err := a.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.ArchiveBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}
