package vault

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Stream magic prefixes used to recognize a compressed payload on import.
// Every supported transform is self-describing, so the artifact header never
// needs a compression field.
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	gzipMagic = []byte{0x1f, 0x8b}
)

// CompressionStats describes one compression pass
type CompressionStats struct {
	OriginalSize     int64           `json:"original_size"`
	CompressedSize   int64           `json:"compressed_size"`
	CompressionRatio float64         `json:"compression_ratio"`
	Algorithm        CompressionType `json:"algorithm"`
	Duration         time.Duration   `json:"duration"`
}

// Compressor is one reversible compression transform. Compress failures are
// CompressionErrors; Decompress failures are CorruptionErrors, because by the
// time a payload is decompressed it has already passed authentication and a
// malformed stream signals a logic bug, not tampering.
type Compressor interface {
	Compress(data []byte, level int) ([]byte, *CompressionStats, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() CompressionType
	DefaultLevel() int
	MinLevel() int
	MaxLevel() int
}

// CompressionManager routes payloads to registered compressors
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a manager with every supported transform
// registered
func NewCompressionManager() *CompressionManager {
	cm := &CompressionManager{
		compressors: make(map[CompressionType]Compressor),
	}

	cm.compressors[CompressionGzip] = &GzipCompressor{}
	cm.compressors[CompressionLZ4] = &LZ4Compressor{}
	cm.compressors[CompressionZstd] = &ZstdCompressor{}

	return cm
}

// Compress shrinks data with the requested algorithm. A level outside the
// algorithm's range (zero included) selects its default.
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, *CompressionStats, error) {
	if algorithm == CompressionNone {
		return data, &CompressionStats{
			OriginalSize:     int64(len(data)),
			CompressedSize:   int64(len(data)),
			CompressionRatio: 1.0,
			Algorithm:        CompressionNone,
		}, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	if level < compressor.MinLevel() || level > compressor.MaxLevel() {
		level = compressor.DefaultLevel()
	}

	return compressor.Compress(data, level)
}

// Detect recognizes the transform that produced data by its stream magic.
// An uncompressed canonical document is recognized by its leading brace.
func (cm *CompressionManager) Detect(data []byte) (CompressionType, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd, nil
	case bytes.HasPrefix(data, lz4Magic):
		return CompressionLZ4, nil
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip, nil
	case len(data) > 0 && data[0] == '{':
		return CompressionNone, nil
	default:
		return "", NewCorruptionError("payload matches no supported compression format", nil)
	}
}

// Decompress restores a payload, detecting the transform from the stream
// itself
func (cm *CompressionManager) Decompress(data []byte) ([]byte, CompressionType, error) {
	algorithm, err := cm.Detect(data)
	if err != nil {
		return nil, "", err
	}
	if algorithm == CompressionNone {
		return data, CompressionNone, nil
	}
	decompressed, err := cm.compressors[algorithm].Decompress(data)
	if err != nil {
		return nil, algorithm, err
	}
	return decompressed, algorithm, nil
}

// SupportedAlgorithms returns every registered transform plus the
// passthrough
func (cm *CompressionManager) SupportedAlgorithms() []CompressionType {
	algorithms := []CompressionType{CompressionNone}
	for algorithm := range cm.compressors {
		algorithms = append(algorithms, algorithm)
	}
	return algorithms
}

func compressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

func (gc *GzipCompressor) Compress(data []byte, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, nil, NewCompressionError("failed to create gzip writer", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, nil, NewCompressionError("failed to compress with gzip", err)
	}

	if err := writer.Close(); err != nil {
		return nil, nil, NewCompressionError("failed to finalize gzip stream", err)
	}

	compressed := buf.Bytes()

	return compressed, &CompressionStats{
		OriginalSize:     int64(len(data)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: compressionRatio(int64(len(data)), int64(len(compressed))),
		Algorithm:        CompressionGzip,
		Duration:         time.Since(start),
	}, nil
}

func (gc *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewCorruptionError("gzip payload is malformed", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCorruptionError("gzip payload is truncated or corrupt", err)
	}

	return decompressed, nil
}

func (gc *GzipCompressor) Algorithm() CompressionType { return CompressionGzip }
func (gc *GzipCompressor) DefaultLevel() int          { return gzip.DefaultCompression }
func (gc *GzipCompressor) MinLevel() int              { return gzip.BestSpeed }
func (gc *GzipCompressor) MaxLevel() int              { return gzip.BestCompression }

// LZ4Compressor implements LZ4 frame compression
type LZ4Compressor struct{}

func (lc *LZ4Compressor) Compress(data []byte, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()

	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if level > 1 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, nil, NewCompressionError("failed to set lz4 compression level", err)
		}
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, nil, NewCompressionError("failed to compress with lz4", err)
	}

	if err := writer.Close(); err != nil {
		return nil, nil, NewCompressionError("failed to finalize lz4 frame", err)
	}

	compressed := buf.Bytes()

	return compressed, &CompressionStats{
		OriginalSize:     int64(len(data)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: compressionRatio(int64(len(data)), int64(len(compressed))),
		Algorithm:        CompressionLZ4,
		Duration:         time.Since(start),
	}, nil
}

func lz4Level(level int) lz4.CompressionLevel {
	switch {
	case level <= 1:
		return lz4.Fast
	case level <= 2:
		return lz4.Level2
	case level <= 4:
		return lz4.Level4
	case level <= 6:
		return lz4.Level6
	default:
		return lz4.Level9
	}
}

func (lc *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCorruptionError("lz4 payload is truncated or corrupt", err)
	}

	return decompressed, nil
}

func (lc *LZ4Compressor) Algorithm() CompressionType { return CompressionLZ4 }
func (lc *LZ4Compressor) DefaultLevel() int          { return 1 }
func (lc *LZ4Compressor) MinLevel() int              { return 1 }
func (lc *LZ4Compressor) MaxLevel() int              { return 9 }

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

func (zc *ZstdCompressor) Compress(data []byte, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()

	encoderLevel := zstd.SpeedDefault
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, nil, NewCompressionError("failed to create zstd encoder", err)
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll(data, make([]byte, 0, len(data)))

	return compressed, &CompressionStats{
		OriginalSize:     int64(len(data)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: compressionRatio(int64(len(data)), int64(len(compressed))),
		Algorithm:        CompressionZstd,
		Duration:         time.Since(start),
	}, nil
}

func (zc *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, NewCorruptionError("failed to create zstd decoder", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, NewCorruptionError("zstd payload is truncated or corrupt", err)
	}

	return decompressed, nil
}

func (zc *ZstdCompressor) Algorithm() CompressionType { return CompressionZstd }
func (zc *ZstdCompressor) DefaultLevel() int          { return 3 }
func (zc *ZstdCompressor) MinLevel() int              { return 1 }
func (zc *ZstdCompressor) MaxLevel() int              { return 22 }
