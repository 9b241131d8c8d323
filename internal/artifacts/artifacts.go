// Package artifacts implements upload, move, and best-effort deletion of
// registration artifacts against an S3-compatible object store.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/decode"
	"github.com/icct/registration/internal/resilience"
)

const (
	NamespacePending   = "pending"
	NamespaceConfirmed = "confirmed"
	NamespaceRejected  = "rejected"
)

// Uploader is the ArtifactUploader implementation.
type Uploader struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	publicBase  string // e.g. "https://cdn.example.com/<bucket>" for URL construction
	concurrency int
	breaker     *resilience.Breaker
	retry       resilience.RetryPolicy
}

type Config struct {
	Bucket            string
	PublicBase        string
	Concurrency       int
	Retry             resilience.RetryPolicy
	CircuitThreshold  uint32
	CircuitCoolOff    time.Duration
}

func New(client *s3.Client, cfg Config) *Uploader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.CircuitThreshold == 0 {
		cfg.CircuitThreshold = 5
	}
	if cfg.CircuitCoolOff == 0 {
		cfg.CircuitCoolOff = 30 * time.Second
	}
	return &Uploader{
		client:      client,
		uploader:    manager.NewUploader(client),
		bucket:      cfg.Bucket,
		publicBase:  strings.TrimSuffix(cfg.PublicBase, "/"),
		concurrency: cfg.Concurrency,
		breaker:     resilience.NewBreaker("artifact-store", cfg.CircuitThreshold, cfg.CircuitCoolOff),
		retry:       cfg.Retry,
	}
}

func slotName(slot decode.Slot, teamID string, playerIndex int) string {
	switch slot {
	case decode.SlotPastorLetter:
		return "pastor_letter"
	case decode.SlotPaymentReceipt:
		return "payment_receipt"
	case decode.SlotGroupPhoto:
		return "group_photo"
	case decode.SlotPlayerAadhar:
		return fmt.Sprintf("%s-P%02d_aadhar", teamID, playerIndex)
	case decode.SlotPlayerSubscription:
		return fmt.Sprintf("%s-P%02d_subscription", teamID, playerIndex)
	default:
		return string(slot)
	}
}

func extForMIME(mime string) string {
	switch mime {
	case decode.MIMEJPEG:
		return "jpg"
	case decode.MIMEPNG:
		return "png"
	case decode.MIMEGIF:
		return "gif"
	case decode.MIMEWebP:
		return "webp"
	case decode.MIMEJXL:
		return "jxl"
	case decode.MIMEPDF:
		return "pdf"
	default:
		return "bin"
	}
}

func (u *Uploader) urlFor(key string) string {
	if u.publicBase == "" {
		return fmt.Sprintf("s3://%s/%s", u.bucket, key)
	}
	return u.publicBase + "/" + key
}

// keyFromURL recovers the object key this package previously returned from
// urlFor, so Move can operate from whatever URL the store has on file
// without the caller needing to remember exact upload-time extensions.
func (u *Uploader) keyFromURL(url string) (string, bool) {
	if u.publicBase != "" && strings.HasPrefix(url, u.publicBase+"/") {
		return strings.TrimPrefix(url, u.publicBase+"/"), true
	}
	prefix := fmt.Sprintf("s3://%s/", u.bucket)
	if strings.HasPrefix(url, prefix) {
		return strings.TrimPrefix(url, prefix), true
	}
	return "", false
}

// UploadPending uploads every artifact under pending/<teamId>/... with
// bounded concurrency, each call wrapped by retry+breaker. The returned map
// is keyed by slotKey (disambiguated per-player). On the first terminal
// failure, remaining uploads still run to completion so the caller's
// DeleteAll sees a consistent set of partially-written keys.
func (u *Uploader) UploadPending(ctx context.Context, teamID string, arts []decode.Artifact) (map[string]string, error) {
	return u.uploadAll(ctx, NamespacePending, teamID, arts)
}

func (u *Uploader) uploadAll(ctx context.Context, namespace, teamID string, arts []decode.Artifact) (map[string]string, error) {
	sem := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	urls := make(map[string]string, len(arts))
	var firstErr error

	for _, a := range arts {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			name := slotName(a.Slot, teamID, a.PlayerIndex)
			key := fmt.Sprintf("%s/%s/%s.%s", namespace, teamID, name, extForMIME(a.MIME))

			err := resilience.Call(ctx, u.breaker, u.retry, func() error {
				return u.putObject(ctx, key, a.Bytes, a.MIME)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = apierrors.ErrUploadFailed.WithMessage(fmt.Sprintf("upload failed for slot %s: %v", a.Slot, err))
				}
				return
			}
			urls[slotResultKey(a)] = u.urlFor(key)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return urls, firstErr
	}
	return urls, nil
}

// slotResultKey disambiguates per-player slots so the result map doesn't
// collide across players sharing the same Slot value.
func slotResultKey(a decode.Artifact) string {
	if a.PlayerIndex == 0 {
		return string(a.Slot)
	}
	return fmt.Sprintf("%s#%d", a.Slot, a.PlayerIndex)
}

func (u *Uploader) putObject(ctx context.Context, key string, data []byte, mime string) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime),
	})
	return err
}

// MoveResult reports per-slot outcomes of a Move call: a partial failure
// surfaces a list of succeeded/failed slots rather than failing outright.
type MoveResult struct {
	URLs   map[string]string // slotResultKey -> new URL
	Failed []string          // slotResultKeys that could not be moved
}

// Move relocates every object named in currentURLs (as previously returned
// by UploadPending or a prior Move) from namespace `from` to `to`. It is
// idempotent per slot: if the target already exists and the source does
// not, the target's URL is returned without re-copying.
func (u *Uploader) Move(ctx context.Context, teamID string, currentURLs map[string]string, from, to string) (MoveResult, error) {
	result := MoveResult{URLs: make(map[string]string)}

	for slotKey, currentURL := range currentURLs {
		key, ok := u.keyFromURL(currentURL)
		if !ok {
			result.Failed = append(result.Failed, slotKey)
			continue
		}
		name := strings.TrimPrefix(key, fmt.Sprintf("%s/%s/", from, teamID))
		toKey := fmt.Sprintf("%s/%s/%s", to, teamID, name)

		err := resilience.Call(ctx, u.breaker, u.retry, func() error {
			return u.moveOne(ctx, key, toKey)
		})
		if err != nil {
			result.Failed = append(result.Failed, slotKey)
			continue
		}
		result.URLs[slotKey] = u.urlFor(toKey)
	}

	if len(result.Failed) > 0 {
		return result, apierrors.New(207, apierrors.CodeUploadFailed, "some artifacts could not be moved").
			WithDetails(map[string]any{"failed": result.Failed})
	}
	return result, nil
}

// RenameTeam relocates every object named in currentURLs from
// namespace/oldTeamID/... to namespace/newTeamID/..., used on the rare
// teamId collision where the coordinator must re-allocate a fresh id after
// artifacts were already uploaded under the old one.
func (u *Uploader) RenameTeam(ctx context.Context, oldTeamID, newTeamID, namespace string, currentURLs map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(currentURLs))
	for slotKey, currentURL := range currentURLs {
		key, ok := u.keyFromURL(currentURL)
		if !ok {
			return out, apierrors.ErrUploadFailed.WithMessage("cannot rename artifact with unrecognized URL: " + currentURL)
		}
		name := strings.TrimPrefix(key, fmt.Sprintf("%s/%s/", namespace, oldTeamID))
		toKey := fmt.Sprintf("%s/%s/%s", namespace, newTeamID, name)

		err := resilience.Call(ctx, u.breaker, u.retry, func() error {
			return u.moveOne(ctx, key, toKey)
		})
		if err != nil {
			return out, apierrors.ErrUploadFailed.WithMessage("rename failed for slot " + slotKey + ": " + err.Error())
		}
		out[slotKey] = u.urlFor(toKey)
	}
	return out, nil
}

func (u *Uploader) moveOne(ctx context.Context, fromKey, toKey string) error {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(u.bucket), Key: aws.String(toKey)})
	targetExists := err == nil

	_, srcErr := u.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(u.bucket), Key: aws.String(fromKey)})
	srcMissing := srcErr != nil

	if targetExists && srcMissing {
		return nil
	}

	_, err = u.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(u.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(u.bucket + "/" + fromKey),
	})
	if err != nil {
		return fmt.Errorf("artifacts: copy %s -> %s: %w", fromKey, toKey, err)
	}

	_, err = u.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(u.bucket), Key: aws.String(fromKey)})
	if err != nil {
		return fmt.Errorf("artifacts: delete source %s: %w", fromKey, err)
	}
	return nil
}

// DeleteAll best-effort deletes every object under namespace/<teamId>/...
// Errors are logged by the caller, never returned as fatal.
func (u *Uploader) DeleteAll(ctx context.Context, teamID, namespace string) error {
	prefix := fmt.Sprintf("%s/%s/", namespace, teamID)

	var continuation *string
	var objects []types.ObjectIdentifier
	for {
		out, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(u.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf("artifacts: list for delete: %w", err)
		}
		for _, obj := range out.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}

	if len(objects) == 0 {
		return nil
	}

	_, err := u.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(u.bucket),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("artifacts: delete objects: %w", err)
	}
	return nil
}
