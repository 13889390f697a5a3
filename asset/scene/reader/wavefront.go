package reader

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/polaris-bvh/asset"
	"github.com/achilleasa/polaris-bvh/asset/scene"
	"github.com/achilleasa/polaris-bvh/asset/texture"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
)

type wavefrontMaterial struct {
	Name string

	// Dissolve factor (1 = opaque).
	D float32

	// Dissolve texture.
	DTex string

	// Relative path for textures.
	AssetRelPath *asset.Resource

	// True if this material is used by at least one face.
	Used bool

	// The scene material referenced by faces using this material. Its
	// properties are filled in once the entire scene has been parsed.
	target *scene.Material
}

// Key for mapping a face vertex to a mesh vertex. Face vertices that share
// both their position and texture coordinate map to the same mesh vertex.
type faceVertex struct {
	vertex int
	uv     int
}

type wavefrontSceneReader struct {
	logger log.Logger

	// The parsed scene.
	scene *scene.Scene

	// A map of material names to parsed wavefront materials
	matNameToIndex map[string]int

	// Currently selected material.
	curMaterial *wavefrontMaterial

	// Parsed wavefront materials.
	materials []*wavefrontMaterial

	// List of vertices and uv coords.
	vertexList []types.Vec3
	uvList     []types.Vec2

	// The mesh that receives parsed faces and its vertex lookup map.
	curMesh     *scene.Mesh
	meshVertMap map[faceVertex]uint32

	// An error stack that provides additional error information when
	// scene files include other files (models, mat libs e.t.c)
	errStack []string
}

// Create a new wavefront scene reader.
func newWavefrontReader() *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:         log.New("wavefront scene reader"),
		scene:          &scene.Scene{},
		matNameToIndex: make(map[string]int),
		vertexList:     make([]types.Vec3, 0),
		uvList:         make([]types.Vec2, 0),
		errStack:       make([]string, 0),
	}
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *asset.Resource) (*scene.Scene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	err := r.parse(sceneRes)
	if err != nil {
		return nil, err
	}

	err = r.processMaterials()
	if err != nil {
		return nil, err
	}

	r.logger.Noticef(
		"parsed scene in %d ms: %d meshes, %d triangles, %d materials",
		time.Since(start).Nanoseconds()/1e6,
		len(r.scene.Meshes), r.scene.TriangleCount(), len(r.scene.Materials),
	)
	return r.scene, nil
}

// Populate the scene materials that are referenced by at least one face and
// load their opacity masks.
func (r *wavefrontSceneReader) processMaterials() error {
	pruned := 0
	for _, wfMat := range r.materials {
		if !wfMat.Used {
			r.logger.Infof("skipping unused material %q", wfMat.Name)
			pruned++
			continue
		}

		wfMat.target.Opacity = wfMat.D
		if wfMat.DTex != "" {
			tex, err := r.loadTexture(wfMat.DTex, wfMat.AssetRelPath)
			if err != nil {
				return r.emitError("", 0, "could not load opacity mask for material %q: %s", wfMat.Name, err.Error())
			}
			wfMat.target.OpacityTex = tex
		}

		r.scene.Materials = append(r.scene.Materials, wfMat.target)
	}

	if pruned > 0 {
		r.logger.Noticef("pruned %d unused materials", pruned)
	}
	return nil
}

func (r *wavefrontSceneReader) loadTexture(location string, relTo *asset.Resource) (*texture.Texture, error) {
	res, err := asset.NewResource(location, relTo)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	r.logger.Infof(`loading opacity mask "%s"`, res.Path())
	return texture.New(res)
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontSceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n"))
	} else {
		errMsg = fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n"))
	}

	return errors.New(strings.Trim(errMsg, "\n"))
}

// Push a frame to the error stack.
func (r *wavefrontSceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontSceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Start a new mesh. Subsequent faces are appended to it.
func (r *wavefrontSceneReader) beginMesh(name string) {
	r.verifyLastParsedMesh()
	r.curMesh = scene.NewMesh(name)
	r.meshVertMap = make(map[faceVertex]uint32)
	r.scene.Meshes = append(r.scene.Meshes, r.curMesh)
}

// Parse wavefront object scene format.
func (r *wavefrontSceneReader) parse(res *asset.Resource) error {
	var lineNum int

	// The main obj file may include (call) several other object files. Each
	// object file contains 1-based indices (when they are positive). By
	// tracking the current vertex/uv offsets we can apply them while parsing
	// faces to select the correct coordinates.
	relVertexOffset := len(r.vertexList)
	relUvOffset := len(r.uvList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call", "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}

			switch lineTokens[0] {
			case "call":
				err = r.parse(incRes)
			case "mtllib":
				err = r.parseMaterials(incRes)
			}
			incRes.Close()

			if err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for 'usemtl'; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = r.materials[matIndex]
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.uvList = append(r.uvList, v)
		case "g", "o":
			name := "default"
			if len(lineTokens) > 1 {
				name = strings.Join(lineTokens[1:], " ")
			}
			r.beginMesh(name)
		case "f":
			// If no object has been defined create a default one
			if r.curMesh == nil {
				r.beginMesh("default")
			}

			err := r.parseFace(lineTokens, relVertexOffset, relUvOffset)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "vn", "s", "l", "p":
			// Normals, smoothing groups and line/point elements do not affect ray queries
		default:
			r.logger.Debugf(`[%s: %d] ignoring unsupported statement "%s"`, res.Path(), lineNum, lineTokens[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err.Error())
	}

	r.verifyLastParsedMesh()
	return nil
}

// Drop the last parsed mesh if it contains no triangles.
func (r *wavefrontSceneReader) verifyLastParsedMesh() {
	lastMeshIndex := len(r.scene.Meshes) - 1
	if lastMeshIndex >= 0 && r.scene.Meshes[lastMeshIndex].TriangleCount() == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.scene.Meshes[lastMeshIndex].Name)
		r.scene.Meshes = r.scene.Meshes[:lastMeshIndex]
		r.curMesh = nil
	}
}

// Parse face definition. Each face definitions consists of 3 or 4 arguments,
// one for each vertex. Each one of the vertex arguments is comprised of
// 1, 2 or 3 args separated by a slash character. The following formats are
// supported:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate
// an offset off the end of the vertex/uv list. Normal indices are ignored.
//
// Quad faces are split into two triangles along the 0-2 diagonal.
func (r *wavefrontSceneReader) parseFace(lineTokens []string, relVertexOffset, relUvOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var corners [4]uint32
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		// Faces must at least define a vertex coord
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		key := faceVertex{uv: -1}
		var err error
		key.vertex, err = selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}

		// Parse UV coords if specified
		if expIndices > 1 && vTokens[1] != "" {
			key.uv, err = selectFaceCoordIndex(vTokens[1], len(r.uvList), relUvOffset)
			if err != nil {
				return fmt.Errorf("could not parse tex coord for face argument %d: %s", arg, err.Error())
			}
		}

		corners[arg] = r.meshVertex(key)
	}

	// Flag the current material as being in use so we don't prune it later
	var material *scene.Material
	if r.curMaterial != nil {
		r.curMaterial.Used = true
		material = r.curMaterial.target
	}

	r.curMesh.AddTriangle(corners[0], corners[1], corners[2], material)
	if len(lineTokens) == 5 {
		r.curMesh.AddTriangle(corners[0], corners[2], corners[3], material)
	}
	return nil
}

// Map a face vertex to a vertex of the current mesh, appending it if needed.
func (r *wavefrontSceneReader) meshVertex(key faceVertex) uint32 {
	if index, exists := r.meshVertMap[key]; exists {
		return index
	}

	var uv types.Vec2
	if key.uv >= 0 {
		uv = r.uvList[key.uv]
	}

	index := uint32(len(r.curMesh.Vertices))
	r.curMesh.Vertices = append(r.curMesh.Vertices, r.vertexList[key.vertex])
	r.curMesh.UVs = append(r.curMesh.UVs, uv)
	r.meshVertMap[key] = index
	return index
}

// Parse a wavefront material library.
func (r *wavefrontSceneReader) parseMaterials(res *asset.Resource) error {
	var lineNum int
	var err error

	r.logger.Infof(`parsing material library "%s"`, res.Path())

	scanner := bufio.NewScanner(res)

	var curMaterial *wavefrontMaterial
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matName := lineTokens[1]
			if _, exists := r.matNameToIndex[matName]; exists {
				return r.emitError(res.Path(), lineNum, `material "%s" already defined`, matName)
			}

			// Allocate new material and add it to library
			curMaterial = &wavefrontMaterial{
				Name:         matName,
				D:            1,
				AssetRelPath: res,
				target:       scene.Opaque(matName),
			}
			r.materials = append(r.materials, curMaterial)
			r.matNameToIndex[matName] = len(r.materials) - 1
			continue
		}

		if curMaterial == nil {
			return r.emitError(res.Path(), lineNum, `got "%s" without a "newmtl"`, lineTokens[0])
		}

		switch lineTokens[0] {
		case "d":
			curMaterial.D, err = parseFloat32(lineTokens)
		case "Tr":
			var tr float32
			tr, err = parseFloat32(lineTokens)
			curMaterial.D = 1 - tr
		case "map_d":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}
			// Options such as -clamp precede the file name
			curMaterial.DTex = lineTokens[len(lineTokens)-1]
		}

		// Report any errors
		if err != nil {
			return r.emitError(res.Path(), lineNum, "%s", err.Error())
		}

		if curMaterial.D < 0 || curMaterial.D > 1 {
			return r.emitError(res.Path(), lineNum, "dissolve factor for material %q must be in the [0, 1] range; got %v", curMaterial.Name, curMaterial.D)
		}
	}

	return scanner.Err()
}

// Given an index for a face coord type (vertex, tex) calculate the proper
// offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = relOffset + int(index-1)
	}
	if index == 0 || vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

// Parse a Vec2 row. Wavefront allows an optional third texture coordinate
// which is ignored.
func parseVec2(lineTokens []string) (types.Vec2, error) {
	if len(lineTokens) < 2 {
		return types.Vec2{}, fmt.Errorf(`unsupported syntax for "%s"; expected 2 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec2{}
	for tokIdx := 1; tokIdx <= 2 && tokIdx < len(lineTokens); tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
