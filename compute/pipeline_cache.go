package compute

import (
	"fmt"
	"sync"

	"github.com/KangWeon/Vortex2D/cache"
	"github.com/KangWeon/Vortex2D/internal/logging"
)

// PipelineCache owns the pipelines compiled on one device. It replaces
// process-wide shader caches: whoever creates it closes it, and Close
// releases every pipeline it still holds.
//
// Every Work built from the cache is a user of its pipeline. The LRU
// bound applies to lookups only: an evicted pipeline that still has
// users is retired and released once its last Work lets go of it.
type PipelineCache struct {
	device    Device
	pipelines *cache.ShardedCache[string, Pipeline]

	// mu guards users, retired and closing. It is held across every
	// call into pipelines, which is where eviction callbacks run.
	mu      sync.Mutex
	users   map[Pipeline]int
	retired map[Pipeline]string
	closing bool
}

// NewPipelineCache creates a cache for device holding up to capacity
// pipelines per shard (0 selects the cache default).
func NewPipelineCache(device Device, capacity int) *PipelineCache {
	pc := &PipelineCache{
		device:  device,
		users:   make(map[Pipeline]int),
		retired: make(map[Pipeline]string),
	}
	pc.pipelines = cache.NewSharded(capacity, cache.StringHasher, cache.WithEvict(pc.evict))
	return pc
}

// evict runs with pc.mu held.
func (pc *PipelineCache) evict(key string, p Pipeline) {
	if !pc.closing && pc.users[p] > 0 {
		logging.Logger().Debug("compute: retire pipeline", "key", key, "users", pc.users[p])
		pc.retired[p] = key
		return
	}
	pc.destroy(key, p)
}

func (pc *PipelineCache) destroy(key string, p Pipeline) {
	logging.Logger().Debug("compute: release pipeline", "key", key)
	delete(pc.users, p)
	delete(pc.retired, p)
	pc.device.ReleasePipeline(p)
}

// Device returns the device pipelines are compiled for.
func (pc *PipelineCache) Device() Device { return pc.device }

func pipelineKey(k *Kernel, local Size) string {
	return fmt.Sprintf("%s@%s", k.Name(), local)
}

// Get returns the pipeline for kernel at the given workgroup extent,
// compiling it on first use. The caller becomes a user of the pipeline
// and hands it back with Work.Release.
func (pc *PipelineCache) Get(kernel *Kernel, local Size) (Pipeline, error) {
	key := pipelineKey(kernel, local)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	p, err := pc.pipelines.GetOrCreate(key, func() (Pipeline, error) {
		logging.Logger().Debug("compute: compile pipeline", "key", key, "device", pc.device.Name())
		p, err := pc.device.CreatePipeline(kernel, local)
		if err != nil {
			return nil, fmt.Errorf("%w: pipeline %s: %w", ErrResourceCreation, key, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	pc.users[p]++
	return p, nil
}

// release drops one user of p. A retired pipeline is released with its
// last user.
func (pc *PipelineCache) release(p Pipeline) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	n, ok := pc.users[p]
	if !ok {
		return
	}
	if n > 1 {
		pc.users[p] = n - 1
		return
	}
	pc.users[p] = 0
	if key, retired := pc.retired[p]; retired {
		pc.destroy(key, p)
	}
}

// Users returns the number of live Works holding a pipeline of kernel
// at the given workgroup extent, retired pipelines included.
func (pc *PipelineCache) Users(kernel *Kernel, local Size) int {
	key := pipelineKey(kernel, local)
	pc.mu.Lock()
	defer pc.mu.Unlock()
	n := 0
	for p, users := range pc.users {
		if pipelineKey(p.Kernel(), p.LocalSize()) == key {
			n += users
		}
	}
	return n
}

// Len returns the number of cached pipelines, retired ones excluded.
func (pc *PipelineCache) Len() int { return pc.pipelines.Len() }

// Retired returns the number of evicted pipelines still held by a Work.
func (pc *PipelineCache) Retired() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.retired)
}

// Stats returns cache counters.
func (pc *PipelineCache) Stats() cache.Stats { return pc.pipelines.Stats() }

// Close releases every pipeline, cached or retired, whether or not a
// Work still holds it. Works recorded afterwards fail on the device.
func (pc *PipelineCache) Close() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.closing = true
	pc.pipelines.Clear()
	for p, key := range pc.retired {
		pc.destroy(key, p)
	}
	clear(pc.users)
	pc.closing = false
}
