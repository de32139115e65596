package libmegnet

// Copyright 2018 The go-python Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-python/gpython/py"

	"github.com/mahendra-ramajayam/megnet/libmegnet/modelstore"
	"github.com/mahendra-ramajayam/megnet/megnet"
)

var (
	LIB_VERSION = "v1.2026.1"
)

var (
	PyStructureType = py.NewType("Structure", "a molecule or crystal: atoms, positions, optional lattice")
	PyStreamType    = py.NewType("StructStream", "megnet.StructStream")
	PyModelType     = py.NewType("Model", "a loaded property predictor")
	PyStoreType     = py.NewType("ModelStore", "megnet.ModelStore")
	PyWorkspaceType = py.NewType("Workspace", "collects active session resources and stores")
)

type pyStruct struct {
	*Structure
}

func (st pyStruct) Type() *py.Type {
	return PyStructureType
}

func (st pyStruct) M__str__() (py.Object, error) {
	return py.String(st.Formula()), nil
}

func (st pyStruct) M__repr__() (py.Object, error) {
	return st.M__str__()
}

func getStructFromObj(obj py.Object) (pyStruct, error) {
	st, ok := obj.(pyStruct)
	if !ok {
		return pyStruct{}, py.ExceptionNewf(py.TypeError, "expected Structure object (got %v)", obj.Type().Name)
	}
	return st, nil
}

// Arg 1 (str, optional): structure expression
func py_NewStructure(module py.Object, args py.Tuple) (py.Object, error) {
	if len(args) > 0 {
		expr, ok := args[0].(py.String)
		if !ok {
			return nil, py.ExceptionNewf(py.TypeError, "expected structure expression string")
		}
		st, err := ParseStructure(string(expr))
		if err != nil {
			return nil, py.ExceptionNewf(py.ValueError, "%v", err)
		}
		return py.Object(pyStruct{st}), nil
	}
	return py.Object(pyStruct{&Structure{}}), nil
}

func py_Structure_NumAtoms(self py.Object, args py.Tuple) (py.Object, error) {
	st := self.(pyStruct)
	return py.Object(py.Int(st.NumAtoms())), nil
}

func py_Structure_Formula(self py.Object, args py.Tuple) (py.Object, error) {
	st := self.(pyStruct)
	return py.Object(py.String(st.Formula())), nil
}

func py_Structure_IsPeriodic(self py.Object, args py.Tuple) (py.Object, error) {
	st := self.(pyStruct)
	if st.IsPeriodic() {
		return py.True, nil
	}
	return py.False, nil
}

func py_Structure_AddAtom(self py.Object, args py.Tuple) (py.Object, error) {
	st := self.(pyStruct)

	var sym string
	var x, y, z float64
	err := py.LoadTuple(args, []interface{}{&sym, &x, &y, &z})
	if err != nil {
		return nil, err
	}

	Z, err := ZForSymbol(sym)
	if err != nil {
		return nil, py.ExceptionNewf(py.ValueError, "%v", err)
	}
	st.AddAtom(Z, [3]float64{x, y, z})
	return py.Object(st), nil
}

func py_Structure_Stream(self py.Object, args py.Tuple) (py.Object, error) {
	st := self.(pyStruct)
	return wrapStructStream(StreamStructures(st.Structure)), nil
}

const (
	READ_ONLY = 0x01

	kWorkspaceAttr = "_Workspace"
)

type Workspace struct {
	StoreCtx megnet.StoreContext
}

func (ws *Workspace) Close() {
	ws.StoreCtx.Close()
	<-ws.StoreCtx.Done()
}

func (ws *Workspace) Type() *py.Type {
	return PyWorkspaceType
}

func py_GetWorkspace(module py.Object, args py.Tuple) (py.Object, error) {
	wsObj, _ := py.GetAttrString(module, kWorkspaceAttr)
	if wsObj == nil {
		ws := &Workspace{
			StoreCtx: megnet.NewStoreContext(),
		}
		wsObj = ws
		py.SetAttrString(module, kWorkspaceAttr, wsObj)
	}
	return wsObj, nil
}

func py_Workspace_StoreExists(self py.Object, args py.Tuple) (py.Object, error) {
	_ = self.(*Workspace)

	var pathname string
	err := py.LoadTuple(args, []interface{}{&pathname})
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(pathname)
	if os.IsNotExist(err) {
		return py.False, nil
	}
	return py.True, nil
}

func py_Workspace_OpenStore(self py.Object, args py.Tuple) (py.Object, error) {
	ws := self.(*Workspace)

	var pathname string
	var flags int32
	err := py.LoadTuple(args, []interface{}{&pathname, &flags})
	if err != nil {
		return nil, err
	}

	opts := megnet.StoreOpts{
		DbPathName: pathname,
		ReadOnly:   (flags & READ_ONLY) != 0,
	}

	store, err := modelstore.OpenStore(ws.StoreCtx, opts)
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}

	return py.Object(pyStore{store}), nil
}

type pyStore struct {
	megnet.ModelStore
}

func (store pyStore) Type() *py.Type {
	return PyStoreType
}

func py_Store_Close(self py.Object, args py.Tuple) (py.Object, error) {
	store := self.(pyStore)
	if store.ModelStore != nil {
		store.Close()
	}
	return py.None, nil
}

func py_Store_ListModels(self py.Object, args py.Tuple) (py.Object, error) {
	store := self.(pyStore)

	names, err := store.ListBundles()
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}

	list := make(py.Tuple, len(names))
	for i, name := range names {
		list[i] = py.String(name)
	}
	return py.Object(list), nil
}

func py_Store_LoadModel(self py.Object, args py.Tuple) (py.Object, error) {
	store := self.(pyStore)

	var name string
	err := py.LoadTuple(args, []interface{}{&name})
	if err != nil {
		return nil, err
	}

	m, err := LoadModel(store, name)
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return py.Object(pyModel{m}), nil
}

type pyModel struct {
	*Model
}

func (m pyModel) Type() *py.Type {
	return PyModelType
}

func (m pyModel) M__str__() (py.Object, error) {
	return py.String(m.Name), nil
}

func (m pyModel) M__repr__() (py.Object, error) {
	return m.M__str__()
}

// Args: Structure objects or structure expression strings.
// Returns one tuple of predicted values per argument.
func py_Model_Predict(self py.Object, args py.Tuple) (py.Object, error) {
	m := self.(pyModel)

	sts := make([]*Structure, 0, len(args))
	for i, arg := range args {
		if expr, isStr := arg.(py.String); isStr {
			st, err := ParseStructure(string(expr))
			if err != nil {
				return nil, py.ExceptionNewf(py.ValueError, "error reading arg %d: %v", i, err)
			}
			sts = append(sts, st)
		} else {
			st, err := getStructFromObj(arg)
			if err != nil {
				return nil, err
			}
			sts = append(sts, st.Structure)
		}
	}

	preds, err := m.Predict(sts)
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}

	out := make(py.Tuple, len(preds))
	for i, pred := range preds {
		if pred == nil {
			out[i] = py.None
			continue
		}
		vals := make(py.Tuple, len(pred))
		for vi, v := range pred {
			vals[vi] = py.Float(v)
		}
		out[i] = vals
	}
	return py.Object(out), nil
}

type structStream struct {
	*StructStream
}

func (stream structStream) Type() *py.Type {
	return PyStreamType
}

func wrapStructStream(stream *StructStream) py.Object {
	return py.Object(structStream{stream})
}

func py_Stream_Go(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(structStream)
	count := stream.PullAll()
	return py.Int(count), nil
}

func py_Stream_DropDupes(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(structStream)
	next := stream.DropDupes()
	return wrapStructStream(next), nil
}

type echoToWriter struct {
	stdout *os.File
	to     io.WriteCloser
}

func (echo *echoToWriter) Write(buf []byte) (int, error) {
	if echo.to == nil {
		return echo.stdout.Write(buf)
	}
	return echo.to.Write(buf)
}

func (echo *echoToWriter) Close() error {
	if echo.to != nil {
		return echo.to.Close()
	}
	return nil
}

var gOutCount = int32(0)

func openOutWriter(pathname string) (io.WriteCloser, error) {
	writer := &echoToWriter{
		stdout: os.Stdout,
	}
	if len(pathname) > 0 {
		os.MkdirAll(filepath.Dir(pathname), 0700)

		file, err := os.OpenFile(pathname, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0600)
		if err != nil {
			return nil, py.ExceptionNewf(py.FileNotFoundError, "%v", err)
		}
		writer.to = file
	}
	return writer, nil
}

// Kwargs: label (str), no_coords (bool), file (str)
func py_Stream_Print(self py.Object, args py.Tuple, kwargs py.StringDict) (py.Object, error) {
	stream := self.(structStream)
	var pathname string

	opts := PrintOpts{}

	py.LoadTuple(args, []interface{}{&opts.Label})
	if opts.Label == "" {
		py.LoadAttr(kwargs, "label", &opts.Label)
	}

	atomic.AddInt32(&gOutCount, 1)
	if opts.Label == "" {
		opts.Label = fmt.Sprintf("out[%d]", gOutCount)
	}

	py.LoadAttr(kwargs, "no_coords", &opts.NoCoords)
	py.LoadAttr(kwargs, "file", &pathname)

	writer, err := openOutWriter(pathname)
	if err != nil {
		return nil, err
	}

	next := stream.Print(writer, opts)
	return wrapStructStream(next), nil
}

// Arg 1: Model
// Arg 2 (str, optional): output pathname
func py_Stream_Predict(self py.Object, args py.Tuple) (py.Object, error) {
	stream := self.(structStream)

	if len(args) == 0 {
		return nil, py.ExceptionNewf(py.TypeError, "expected Model object")
	}
	m, ok := args[0].(pyModel)
	if !ok {
		return nil, py.ExceptionNewf(py.TypeError, "expected Model object (got %v)", args[0].Type().Name)
	}

	var pathname string
	if len(args) > 1 {
		if path, isStr := args[1].(py.String); isStr {
			pathname = string(path)
		}
	}

	writer, err := openOutWriter(pathname)
	if err != nil {
		return nil, err
	}

	next := stream.PredictWith(m.Model, writer)
	return wrapStructStream(next), nil
}

func init() {

	/////////////////////////////////
	// Structure
	{
		PyStructureType.Dict["NumAtoms"] = py.MustNewMethod("NumAtoms", py_Structure_NumAtoms, 0, "")
		PyStructureType.Dict["Formula"] = py.MustNewMethod("Formula", py_Structure_Formula, 0, "")
		PyStructureType.Dict["IsPeriodic"] = py.MustNewMethod("IsPeriodic", py_Structure_IsPeriodic, 0, "")
		PyStructureType.Dict["AddAtom"] = py.MustNewMethod("AddAtom", py_Structure_AddAtom, 0, "")
		PyStructureType.Dict["Stream"] = py.MustNewMethod("Stream", py_Structure_Stream, 0, "")
	}

	/////////////////////////////////
	// Workspace
	{
		PyWorkspaceType.Dict["OpenStore"] = py.MustNewMethod("OpenStore", py_Workspace_OpenStore, 0, "")
		PyWorkspaceType.Dict["StoreExists"] = py.MustNewMethod("StoreExists", py_Workspace_StoreExists, 0, "")
	}

	/////////////////////////////////
	// ModelStore
	{
		PyStoreType.Dict["ListModels"] = py.MustNewMethod("ListModels", py_Store_ListModels, 0, "")
		PyStoreType.Dict["LoadModel"] = py.MustNewMethod("LoadModel", py_Store_LoadModel, 0, "")
		PyStoreType.Dict["Close"] = py.MustNewMethod("Close", py_Store_Close, 0, "")
	}

	/////////////////////////////////
	// Model
	{
		PyModelType.Dict["Predict"] = py.MustNewMethod("Predict", py_Model_Predict, 0, "predicts properties for each given structure")
	}

	/////////////////////////////////
	// StructStream
	{
		PyStreamType.Dict["Go"] = py.MustNewMethod("Go", py_Stream_Go, 0, "counts the number of structures output from the StructStream")
		PyStreamType.Dict["Print"] = py.MustNewMethod("Print", py_Stream_Print, 0, "prints each structure from the StructStream")
		PyStreamType.Dict["DropDupes"] = py.MustNewMethod("DropDupes", py_Stream_DropDupes, 0, "")
		PyStreamType.Dict["Predict"] = py.MustNewMethod("Predict", py_Stream_Predict, 0, "")
	}

	{
		methods := []*py.Method{
			py.MustNewMethod("NewStructure", py_NewStructure, 0, ""),
			py.MustNewMethod("GetWorkspace", py_GetWorkspace, 0, ""),
		}

		globals := py.StringDict{
			"LIB_VERSION": py.String(LIB_VERSION),
			"PY_VERSION":  py.String("v3.4.0"),
			"MAX_Z":       py.Int(megnet.MaxZ),
		}

		py.RegisterModule(&py.ModuleImpl{
			Info: py.ModuleInfo{
				Name: "_pymegnet",
				Doc:  "molecular property prediction gpython module",
			},
			Methods: methods,
			Globals: globals,
			OnContextClosed: func(m *py.Module) {
				wsObj, _ := py.GetAttrString(m, kWorkspaceAttr)
				if wsObj != nil {
					wsObj.(*Workspace).Close()
				}
			},
		})

	}
}
