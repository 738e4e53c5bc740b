package spec

// Length field constants
const (
	KEY_SIZE            = 32   // AES-256 key size, also the CSPRNG key size
	SEED_SIZE           = 4    // Little-endian capacity bytes at the start of the CSPRNG key
	SHUFFLE_ITERATIONS  = 1000 // Shuffle passes, changing this breaks existing carriers
	MAX_NUM_LENGTH_BITS = 64
	MAX_LENGTH_SIZE     = MAX_NUM_LENGTH_BITS / 8
	BITS_PER_BYTE       = 8
)

// Carrier image constants
const (
	SIZE_INTERVAL       = 16 // Dimensions are multiples of this (px)
	WIDTH_FACTOR        = 4
	HEIGHT_FACTOR       = 3
	MIN_SIZE_MULTIPLIER = 2 // Minimum is factor * 2 * interval, i.e. 128x96
	BITS_PER_PIXEL      = 1 // Parity of the R, G and B LSBs
	FRAME_OVERHEAD_BITS = MAX_NUM_LENGTH_BITS
	CHANNELS            = 3 // RGB channels

	DEFAULT_CELL_SIZE          = SIZE_INTERVAL
	DEFAULT_MAX_PAYLOAD_LENGTH = 16 << 20 // 16 MiB
	DEFAULT_MAX_IMAGE_BYTES    = 2 << 30  // 2 GiB of RGBA pixels
)

// Security constants
const (
	SALT_SIZE    = 32     // Salt for PBKDF2
	NONCE_SIZE   = 12     // GCM nonce size
	TAG_SIZE     = 16     // GCM authentication tag
	PBKDF2_ITERS = 100000 // PBKDF2 iterations (adjustable for security/speed)
	MIN_PASSWORD = 8

	// Magic bytes to verify successful decryption
	MAGIC_HEADER = 0x53494D47 // "SIMG"
	MAGIC_SIZE   = 4
	FLAG_SIZE    = 1 // Compression flag after the magic header

	FRAME_HEADER_SIZE = SALT_SIZE + NONCE_SIZE
	MIN_FRAME_SIZE    = FRAME_HEADER_SIZE + MAGIC_SIZE + FLAG_SIZE + TAG_SIZE
)
