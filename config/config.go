// Package config holds the tunables the specification calls out as
// "configurable, defaults": volume geometry and scheduler timing.
package config

const (
	ClusterSize = 4096

	SuperblockCluster   = 0
	FATStartCluster     = 1
	FATClusters         = 256
	RootDirStartCluster = 257
	RootDirClusters     = 190
	DataStartCluster    = 447

	SectorSize        = 512
	SectorsPerCluster = 8
	FATCount          = 1

	// DirentsPerCluster is how many 61-byte directory records fit in one
	// 4096-byte cluster without crossing a cluster boundary (floor(4096/61)
	// = 67). Spec.md §3.4 also quotes "99 records per cluster", a figure
	// left over from the superseded 41-byte record layout (4096/41 = 99);
	// see DESIGN.md for why this implementation follows the byte-accurate
	// value instead.
	DirentsPerCluster = ClusterSize / 61
	MaxRootDirEntries = DirentsPerCluster * RootDirClusters

	DefaultDiskSizeBytes = 1 << 30 // 1 GiB

	FATEndOfChain = 0x0FFFFFFF
	FATFree       = 0x00000000

	MaxFileNameLength  = 40
	MaxLoginLength     = 30
	MaxGroupNameLength = 31

	DefaultFilePerms = 0o644

	DefaultMaxPasswordAttempts = 3
)

// VolumeOptions configures Format. Constructed via functional options so
// callers only need to override what they care about.
type VolumeOptions struct {
	DiskSizeBytes int64
	VolumeName    string
}

// VolumeOption mutates a VolumeOptions during construction.
type VolumeOption func(*VolumeOptions)

// WithDiskSize records the total size of the backing image, in bytes.
// volume.Format does not read this field; it takes the size from the device
// it is given.
func WithDiskSize(sizeBytes int64) VolumeOption {
	return func(o *VolumeOptions) { o.DiskSizeBytes = sizeBytes }
}

// WithVolumeName overrides the volume label stored in the superblock.
func WithVolumeName(name string) VolumeOption {
	return func(o *VolumeOptions) { o.VolumeName = name }
}

// NewVolumeOptions builds a VolumeOptions from defaults plus any overrides.
func NewVolumeOptions(opts ...VolumeOption) VolumeOptions {
	o := VolumeOptions{
		DiskSizeBytes: DefaultDiskSizeBytes,
		VolumeName:    "OSEMUVOL",
	}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// SchedulerOptions configures a scheduler instance.
type SchedulerOptions struct {
	// Quanta holds the quantum for queue 0 and queue 1; queue 2 is always
	// infinite (FCFS), so only two values are meaningful.
	Quanta [2]float64
	// TimeSlice is the Δ used by Step() when the caller doesn't supply one.
	TimeSlice float64
	// MaxPasswordAttempts is how many consecutive failed verifications before
	// AUTH_FAILED escalates to AUTH_LOCKED. Nothing in this module reads
	// this field; the shell passes DefaultMaxPasswordAttempts to Login.
	MaxPasswordAttempts int
}

// SchedulerOption mutates a SchedulerOptions during construction.
type SchedulerOption func(*SchedulerOptions)

// WithQuanta overrides the queue-0 and queue-1 quanta.
func WithQuanta(q0, q1 float64) SchedulerOption {
	return func(o *SchedulerOptions) { o.Quanta = [2]float64{q0, q1} }
}

// WithTimeSlice overrides the default Δ used by Step().
func WithTimeSlice(delta float64) SchedulerOption {
	return func(o *SchedulerOptions) { o.TimeSlice = delta }
}

// NewSchedulerOptions builds a SchedulerOptions from defaults plus overrides.
func NewSchedulerOptions(opts ...SchedulerOption) SchedulerOptions {
	o := SchedulerOptions{
		Quanta:              [2]float64{2.0, 4.0},
		TimeSlice:           1.0,
		MaxPasswordAttempts: DefaultMaxPasswordAttempts,
	}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
