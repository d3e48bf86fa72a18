package geodata

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// WGS84 栅格唯一支持的坐标系, 不做重投影
const WGS84 = 4326

// Raster 栅格网格描述
type Raster struct {
	NoDataValue *float64   `json:"noDataValue,omitempty"`
	PixelWidth  float64    `json:"pixelWidth"`
	PixelHeight float64    `json:"pixelHeight"`
	BBox        [4]float64 `json:"bbox"`
	Values      []float64  `json:"values"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Projection  int        `json:"projection,omitempty"`
}

// UnmarshalRaster 解析并校验栅格描述
func UnmarshalRaster(data []byte) (*Raster, error) {
	var r Raster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Projection == 0 {
		r.Projection = WGS84
	}
	return &r, nil
}

// Validate 检查网格尺寸、范围与坐标系
func (r *Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", r.Width, r.Height)
	}
	// 不做乘法, 避免超大尺寸溢出后与空值数组相等
	n := len(r.Values)
	if r.Width > n || n%r.Width != 0 || n/r.Width != r.Height {
		return fmt.Errorf("raster has %d values, want %dx%d", n, r.Width, r.Height)
	}
	if r.BBox[0] >= r.BBox[2] || r.BBox[1] >= r.BBox[3] {
		return fmt.Errorf("invalid raster bbox %v", r.BBox)
	}
	if r.Projection != 0 && r.Projection != WGS84 {
		return fmt.Errorf("unsupported raster projection %d", r.Projection)
	}
	return nil
}

// Bound 栅格范围
func (r *Raster) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.BBox[0], r.BBox[1]},
		Max: orb.Point{r.BBox[2], r.BBox[3]},
	}
}

// At 返回 (col, row) 像元值, nodata 或越界时 ok 为 false
func (r *Raster) At(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}
	v := r.Values[row*r.Width+col]
	if r.NoDataValue != nil && v == *r.NoDataValue {
		return 0, false
	}
	return v, true
}

// Coverage 有效像元比例
func (r *Raster) Coverage() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	n := 0
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			if _, ok := r.At(col, row); ok {
				n++
			}
		}
	}
	return float64(n) / float64(len(r.Values))
}
