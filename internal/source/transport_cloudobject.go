package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/model"
)

// S3API is the subset of the AWS SDK S3 client this transport needs, kept
// narrow so tests can supply a fake.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// CloudObjectTransport implements chain.Transport by listing immutable
// block objects from a bucket/prefix, named "<slot>-<hash_hex>.cbor", and
// replaying them in ascending slot order. This is the batch/replay
// counterpart to the live transports, built on aws-sdk-go-v2's S3 client
// for artifact storage. Undo/Reset never occur on this transport: a
// finalized object listing has no forks.
type CloudObjectTransport struct {
	Client S3API
	Bucket string
	Prefix string

	mu      sync.Mutex
	objects []cloudObjectKey
	cursor  int
}

type cloudObjectKey struct {
	Slot uint64
	Hash string
	Key  string
}

func (t *CloudObjectTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.objects != nil {
		return nil
	}

	var keys []cloudObjectKey
	var continuation *string
	for {
		out, err := t.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(t.Bucket),
			Prefix:            aws.String(t.Prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf("cloud object transport: list: %w", err)
		}
		for _, obj := range out.Contents {
			k, err := parseCloudObjectKey(aws.ToString(obj.Key))
			if err != nil {
				continue // not one of ours; skip rather than fail the whole listing
			}
			keys = append(keys, k)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Slot < keys[j].Slot })
	t.objects = keys
	return nil
}

func parseCloudObjectKey(key string) (cloudObjectKey, error) {
	base := key
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		base = key[idx+1:]
	}
	base = strings.TrimSuffix(base, ".cbor")
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return cloudObjectKey{}, fmt.Errorf("cloud object transport: malformed key %q", key)
	}
	slot, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return cloudObjectKey{}, fmt.Errorf("cloud object transport: malformed slot in key %q: %w", key, err)
	}
	return cloudObjectKey{Slot: slot, Hash: parts[1], Key: key}, nil
}

func (t *CloudObjectTransport) Tip(context.Context) (model.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.objects) == 0 {
		return model.Origin(), nil
	}
	last := t.objects[len(t.objects)-1]
	return pointFromKey(last)
}

func (t *CloudObjectTransport) FindIntersect(_ context.Context, candidates []model.Point) (model.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range candidates {
		if c.IsOrigin() {
			t.cursor = 0
			return c, nil
		}
		for i, obj := range t.objects {
			if obj.Slot == c.Slot && obj.Hash == c.HashHex() {
				t.cursor = i + 1
				return c, nil
			}
		}
	}
	return model.Point{}, chain.ErrIntersectNotFound
}

func (t *CloudObjectTransport) IntersectOrigin(context.Context) (model.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = 0
	return model.Origin(), nil
}

func (t *CloudObjectTransport) IntersectTip(context.Context) (model.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor = len(t.objects)
	if len(t.objects) == 0 {
		return model.Origin(), nil
	}
	return pointFromKey(t.objects[len(t.objects)-1])
}

func (t *CloudObjectTransport) NextSyncEvent(ctx context.Context) (chain.SyncEvent, error) {
	t.mu.Lock()
	if t.cursor >= len(t.objects) {
		t.mu.Unlock()
		<-ctx.Done()
		return chain.SyncEvent{}, ctx.Err()
	}
	obj := t.objects[t.cursor]
	t.cursor++
	t.mu.Unlock()

	point, err := pointFromKey(obj)
	if err != nil {
		return chain.SyncEvent{}, err
	}

	out, err := t.Client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(t.Bucket), Key: aws.String(obj.Key)})
	if err != nil {
		return chain.SyncEvent{}, fmt.Errorf("cloud object transport: get %s: %w", obj.Key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return chain.SyncEvent{}, fmt.Errorf("cloud object transport: read %s: %w", obj.Key, err)
	}

	return chain.SyncEvent{Kind: chain.SyncApply, Point: point, Record: model.NewCborBlockRecord(raw)}, nil
}

func (t *CloudObjectTransport) Close() error { return nil }

func pointFromKey(k cloudObjectKey) (model.Point, error) {
	hash, err := hex.DecodeString(k.Hash)
	if err != nil {
		return model.Point{}, fmt.Errorf("cloud object transport: decode hash in key %q: %w", k.Key, err)
	}
	return model.NewPoint(k.Slot, hash)
}
