package photon

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/gmlewis/threemf-slicer/preview"
)

const (
	// Default values from ChiTuBox
	previewWidth  = 0x190
	previewHeight = 0x12c

	screenWidth  = 0xa00
	screenHeight = 0x5a0

	thumbnailWidth  = 0xc8
	thumbnailHeight = 0x7d

	bottomLayers = 8

	// setPixels flags a run of exposed pixels in layer data.
	setPixels = 0x80
	// maxRun is the longest run stored in one layer data byte.
	maxRun = 0x7d
)

// This is based on: github.com/Andoryuuta/photon
// LICENSE: Apache-2.0
// https://github.com/Andoryuuta/photon/blob/master/LICENSE

func (d *dlp) writeHeader(img image.Image) error {
	previewData := encodePreview(previewWidth, previewHeight, img)
	thumbnailData := encodePreview(thumbnailWidth, thumbnailHeight, img)

	pos := binary.Size(binCompatFileHeader{})

	previewHeaderOffset := pos
	pos += binary.Size(binCompatPreviewHeader{})
	previewDataOffset := pos
	pos += len(previewData)

	thumbnailHeaderOffset := pos
	pos += binary.Size(binCompatPreviewHeader{})
	thumbnailDataOffset := pos
	pos += len(thumbnailData)

	layerHeadersOffset := pos
	pos += d.numLayers * binary.Size(binCompatLayerHeader{})
	d.layerHeaderOffset0 = int64(layerHeadersOffset)

	layer0 := encodeLayerImageData(img)

	header := binCompatFileHeader{
		Magic1:                       0x12FD0019,
		Magic2:                       0x01,
		PlateX:                       screenHeight * PixelPitch,
		PlateY:                       screenWidth * PixelPitch,
		PlateZ:                       150.0, // default
		LayerThickness:               float32(d.thickness),
		NormalExposureTime:           6,  // default
		BottomExposureTime:           50, // default
		OffTime:                      0,  // default
		BottomLayers:                 bottomLayers,
		ScreenHeight:                 screenHeight,
		ScreenWidth:                  screenWidth,
		PreviewHeaderOffset:          uint32(previewHeaderOffset),
		LayerHeadersOffset:           uint32(layerHeadersOffset),
		TotalLayers:                  uint32(d.numLayers),
		PreviewThumbnailHeaderOffset: uint32(thumbnailHeaderOffset),
		LightCuringType:              1, // default
	}

	previewHeader := binCompatPreviewHeader{
		Width:             previewWidth,
		Height:            previewHeight,
		PreviewDataOffset: uint32(previewDataOffset),
		PreviewDataSize:   uint32(len(previewData)),
	}

	thumbnailHeader := binCompatPreviewHeader{
		Width:             thumbnailWidth,
		Height:            thumbnailHeight,
		PreviewDataOffset: uint32(thumbnailDataOffset),
		PreviewDataSize:   uint32(len(thumbnailData)),
	}

	// Data offsets and sizes past layer 0 are filled in by writeLayer.
	d.layerHeaders = make([]binCompatLayerHeader, d.numLayers)
	for i := range d.layerHeaders {
		expTime := header.NormalExposureTime
		if i < bottomLayers {
			expTime = header.BottomExposureTime
		}
		d.layerHeaders[i] = binCompatLayerHeader{
			AbsoluteHeight: float32(float64(i) * d.thickness),
			ExposureTime:   expTime,
		}
	}
	d.layerHeaders[0].ImageDataOffset = uint32(pos)
	d.layerHeaders[0].ImageDataSize = uint32(len(layer0))

	for _, v := range []any{
		header,
		previewHeader,
		previewData,
		thumbnailHeader,
		thumbnailData,
		d.layerHeaders,
		layer0,
	} {
		if err := binary.Write(d.w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	return nil
}

func (d *dlp) writeLayer(n int, img image.Image) error {
	data := encodeLayerImageData(img)

	prev := d.layerHeaders[n-1]
	d.layerHeaders[n].ImageDataOffset = prev.ImageDataOffset + prev.ImageDataSize
	d.layerHeaders[n].ImageDataSize = uint32(len(data))

	return binary.Write(d.w, binary.LittleEndian, data)
}

// encodeLayerImageData run-length encodes the exposure mask of img,
// centered on the printer screen and scanned column by column.
func encodeLayerImageData(img image.Image) []byte {
	var output []byte

	b := img.Bounds()
	xOffset, yOffset := 0, 0
	if b.Dx() < screenWidth {
		xOffset = (screenWidth - b.Dx()) >> 1
	}
	if b.Dy() < screenHeight {
		yOffset = (screenHeight - b.Dy()) >> 1
	}

	var run uint8
	var runSet bool
	flush := func() {
		if run == 0 {
			return
		}
		if runSet {
			output = append(output, run|setPixels)
		} else {
			output = append(output, run)
		}
		run = 0
	}

	for x := 0; x < screenWidth; x++ {
		for y := 0; y < screenHeight; y++ {
			u, v := b.Min.X+x-xOffset, b.Min.Y+y-yOffset
			set := image.Pt(u, v).In(b) && preview.Filled(img, u, v)
			if set != runSet {
				flush()
				runSet = set
			}
			run++
			if run >= maxRun {
				flush()
			}
		}
	}
	flush()

	return output
}

func changeRange(fromMin uint32, fromMax uint32, toMin uint32, toMax uint32, number uint32) uint32 {
	return uint32(math.Round(float64(number-fromMin)*float64(toMax-toMin)/float64(fromMax-fromMin) + float64(toMin)))
}

func combineRGB5515(r uint8, g uint8, b uint8, isFill bool) uint16 {
	// Scale colors from the range of 0-255 to 0-31
	rBits := uint16(changeRange(0, 255, 0, 31, uint32(r)))
	gBits := uint16(changeRange(0, 255, 0, 31, uint32(g)))
	bBits := uint16(changeRange(0, 255, 0, 31, uint32(b)))

	fillBit := uint16(0)
	if isFill {
		fillBit = 1
	}

	var x uint16
	x |= ((rBits & 0x1F) << 0)
	x |= ((fillBit & 0x1) << 5)
	x |= ((gBits & 0x1F) << 6)
	x |= ((bBits & 0x1F) << 11)

	return x
}

// encodePreview scales img to imageWidth x imageHeight and encodes it as
// run-length RGB5515.
func encodePreview(imageWidth, imageHeight int, img image.Image) []uint8 {
	var output []uint8

	b := img.Bounds()
	xScale := float32(b.Dx()) / float32(imageWidth)
	yScale := float32(b.Dy()) / float32(imageHeight)

	maxPixelIndex := imageHeight * imageWidth

	pixelAt := func(pi int) color.NRGBA {
		if pi >= maxPixelIndex {
			return color.NRGBA{}
		}
		x := b.Min.X + int(float32(pi%imageWidth)*xScale)
		y := b.Min.Y + int(float32(pi/imageWidth)*yScale)
		return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	}

	emit := func(v uint16) {
		output = append(output, byte(v&0xFF), byte(v>>8))
	}

	for pixelIndex := 0; pixelIndex < maxPixelIndex; pixelIndex++ {
		p := pixelAt(pixelIndex)

		if pixelIndex+2 >= maxPixelIndex || p != pixelAt(pixelIndex+1) || p != pixelAt(pixelIndex+2) {
			emit(combineRGB5515(p.R, p.G, p.B, false))
			continue
		}

		// Count repeats
		var repeat uint16 = 3
		for ; repeat < 0xFFF && pixelIndex+int(repeat) < maxPixelIndex && p == pixelAt(pixelIndex+int(repeat)); repeat++ {
		}

		emit(combineRGB5515(p.R, p.G, p.B, true) | 0x20)
		emit(repeat - 1 | 0x3000)

		pixelIndex += int(repeat - 1)
	}

	return output
}
