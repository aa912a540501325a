// Package anvil converts chunks to and from the anvil NBT layout stored in
// region files: 16-block sections with Blocks, Add and Data nibble arrays.
package anvil

import (
	"bytes"
	"fmt"

	"github.com/Tnze/go-mc/nbt"

	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

const (
	blocksLen = 4096
	nibbleLen = 2048
)

type chunkRoot struct {
	Level chunkLevel `nbt:"Level"`
}

type chunkLevel struct {
	XPos             int32          `nbt:"xPos"`
	ZPos             int32          `nbt:"zPos"`
	Height           int32          `nbt:"Height"`
	TerrainPopulated int8           `nbt:"TerrainPopulated"`
	Sections         []chunkSection `nbt:"Sections"`
	HeightMap        []int32        `nbt:"HeightMap"`
}

// chunkSection.Y is read back as an unsigned byte so tall worlds can use
// up to 256 sections.
type chunkSection struct {
	Y      int8   `nbt:"Y"`
	Blocks []byte `nbt:"Blocks"`
	Add    []byte `nbt:"Add,omitempty"`
	Data   []byte `nbt:"Data"`
}

// EncodeChunk encodes a chunk as uncompressed NBT. All-air sections are omitted.
func EncodeChunk(pos gen.ChunkPos, c *gen.ChunkData) ([]byte, error) {
	lvl := chunkLevel{
		XPos:             int32(pos.X),
		ZPos:             int32(pos.Z),
		Height:           int32(c.Height()),
		TerrainPopulated: 1,
		HeightMap:        computeHeightMap(c),
	}

	for secY, sec := range c.Sections {
		if sec == nil {
			continue
		}

		blocks := make([]byte, blocksLen)
		data := make([]byte, nibbleLen)
		var add []byte

		for i, state := range sec.Blocks {
			blockID := state >> 4
			blocks[i] = byte(blockID)
			setNibble(data, i, byte(state&0xF))

			if blockID > 255 {
				if add == nil {
					add = make([]byte, nibbleLen)
				}
				setNibble(add, i, byte(blockID>>8))
			}
		}

		lvl.Sections = append(lvl.Sections, chunkSection{
			Y:      int8(uint8(secY)),
			Blocks: blocks,
			Add:    add,
			Data:   data,
		})
	}

	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(chunkRoot{Level: lvl}, ""); err != nil {
		return nil, fmt.Errorf("encode chunk (%d, %d): %w", pos.X, pos.Z, err)
	}
	return buf.Bytes(), nil
}

// MaxHeight is the tallest chunk the codec accepts, in blocks.
const MaxHeight = 4096

// DecodeChunk parses uncompressed NBT produced by EncodeChunk into a chunk
// of the world height. A recorded height that is out of range or differs
// from height is an error.
func DecodeChunk(raw []byte, height int) (gen.ChunkPos, *gen.ChunkData, error) {
	if !validHeight(height) {
		return gen.ChunkPos{}, nil, fmt.Errorf("invalid world height %d", height)
	}

	var root chunkRoot
	if _, err := nbt.NewDecoder(bytes.NewReader(raw)).Decode(&root); err != nil {
		return gen.ChunkPos{}, nil, fmt.Errorf("decode chunk nbt: %w", err)
	}

	lvl := root.Level
	pos := gen.ChunkPos{X: int(lvl.XPos), Z: int(lvl.ZPos)}
	if stored := int(lvl.Height); stored != 0 {
		if !validHeight(stored) {
			return pos, nil, fmt.Errorf("chunk (%d, %d): invalid stored height %d", pos.X, pos.Z, stored)
		}
		if stored != height {
			return pos, nil, fmt.Errorf("chunk (%d, %d): stored height %d, world height %d", pos.X, pos.Z, stored, height)
		}
	}

	c := gen.NewChunkData(height)
	for _, s := range lvl.Sections {
		secY := int(uint8(s.Y))
		if secY >= len(c.Sections) {
			return pos, nil, fmt.Errorf("chunk (%d, %d): section %d above height %d", pos.X, pos.Z, secY, height)
		}
		if len(s.Blocks) != blocksLen || len(s.Data) != nibbleLen {
			return pos, nil, fmt.Errorf("chunk (%d, %d): section %d has malformed block arrays", pos.X, pos.Z, secY)
		}
		if len(s.Add) != 0 && len(s.Add) != nibbleLen {
			return pos, nil, fmt.Errorf("chunk (%d, %d): section %d has malformed add array", pos.X, pos.Z, secY)
		}

		sec := &gen.Section{}
		for i := range sec.Blocks {
			blockID := uint16(s.Blocks[i])
			if len(s.Add) != 0 {
				blockID |= uint16(getNibble(s.Add, i)) << 8
			}
			sec.Blocks[i] = blockID<<4 | uint16(getNibble(s.Data, i))
		}
		c.Sections[secY] = sec
	}
	return pos, c, nil
}

func validHeight(h int) bool {
	return h >= gen.SectionHeight && h <= MaxHeight && h%gen.SectionHeight == 0
}

// setNibble sets a 4-bit value at the given block index in a nibble array.
func setNibble(arr []byte, index int, val byte) {
	byteIdx := index / 2
	if index%2 == 0 {
		arr[byteIdx] = (arr[byteIdx] & 0xF0) | (val & 0x0F)
	} else {
		arr[byteIdx] = (arr[byteIdx] & 0x0F) | ((val & 0x0F) << 4)
	}
}

func getNibble(arr []byte, index int) byte {
	if index%2 == 0 {
		return arr[index/2] & 0x0F
	}
	return arr[index/2] >> 4
}

// computeHeightMap calculates one above the highest non-air block for each x,z column.
func computeHeightMap(c *gen.ChunkData) []int32 {
	hm := make([]int32, 256)

	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			for y := c.Height() - 1; y >= 0; y-- {
				if c.GetBlock(x, y, z) != gen.BlockAir {
					hm[z*16+x] = int32(y + 1)
					break
				}
			}
		}
	}
	return hm
}
