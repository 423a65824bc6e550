package tesswrap

import (
	"maps"
	"slices"
	"strconv"
)

// priorValue is what a variable was set to before its first change since the last checkpoint.
// known is false when none of the typed getters could read it.
type priorValue struct {
	value string
	known bool
}

// currentValueLocked reads the value of name as a string, trying the typed getters in turn.
// Tesseract has no generic getter, and each typed one fails for parameters of another type.
func (in *instance) currentValueLocked(op, name string) (priorValue, error) {
	if v, ok := in.vars[name]; ok {
		return priorValue{v, true}, nil
	}
	var pv priorValue
	err := in.native(op, func() {
		if s, ok := in.backend.StringVariable(in.handle, name); ok {
			pv = priorValue{s, true}
			return
		}
		if n, ok := in.backend.IntVariable(in.handle, name); ok {
			pv = priorValue{strconv.Itoa(int(n)), true}
			return
		}
		if b, ok := in.backend.BoolVariable(in.handle, name); ok {
			pv = priorValue{"0", true}
			if b {
				pv.value = "1"
			}
			return
		}
		if f, ok := in.backend.DoubleVariable(in.handle, name); ok {
			pv = priorValue{strconv.FormatFloat(f, 'g', -1, 64), true}
		}
	})
	return pv, err
}

// Checkpoint makes the current variables and page segmentation mode the state [Engine.Restore]
// returns to. Init sets a checkpoint.
func (e *Engine) Checkpoint() error {
	const op = "Checkpoint"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	return in.checkpointLocked(op)
}

func (in *instance) checkpointLocked(op string) error {
	in.baseline = maps.Clone(in.vars)
	in.prior = make(map[string]priorValue)
	return in.native(op, func() {
		in.basePSM = in.backend.PageSegMode(in.handle)
	})
}

// Changed lists the variables set to a new value since the last checkpoint.
func (e *Engine) Changed() ([]string, error) {
	in, err := e.acquire("Changed", true)
	if err != nil {
		return nil, err
	}
	defer in.mu.Unlock()
	return slices.Sorted(maps.Keys(in.prior)), nil
}

// Restore undoes every variable change since the last checkpoint and resets the page
// segmentation mode. A variable whose earlier value could not be read is reset by
// initializing the engine again with the same data, after which the checkpointed
// variables are set once more. Results and the current image are kept unless that happens.
func (e *Engine) Restore() error {
	const op = "Restore"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()

	reinit := false
	for _, pv := range in.prior {
		if !pv.known {
			reinit = true
			break
		}
	}
	if reinit {
		if err := in.reinitLocked(op); err != nil {
			return err
		}
	} else {
		for _, name := range slices.Sorted(maps.Keys(in.prior)) {
			if err := in.setLocked(op, name, in.prior[name].value); err != nil {
				return err
			}
		}
	}
	in.vars = maps.Clone(in.baseline)
	if in.vars == nil {
		in.vars = make(map[string]string)
	}
	clear(in.prior)
	return in.native(op, func() {
		in.backend.SetPageSegMode(in.handle, in.basePSM)
	})
}

// reinitLocked loads the model data again and applies the checkpointed variables.
func (in *instance) reinitLocked(op string) error {
	if err := in.resetLocked(op); err != nil {
		return err
	}
	var status int32
	err := in.native(op, func() {
		status = in.backend.Init(in.handle, in.datapath, in.language, in.oem)
	})
	if err == nil && status != 0 {
		err = opError(op, ErrInitializationFailed, "native status %d for language %q in %s", status, in.language, in.datapath)
	}
	if err != nil {
		in.state = StateCreated
		return err
	}
	in.log.Debug("Engine initialized again to restore variables")
	for _, name := range slices.Sorted(maps.Keys(in.baseline)) {
		if err := in.setLocked(op, name, in.baseline[name]); err != nil {
			return err
		}
	}
	return nil
}

func (in *instance) setLocked(op, name, value string) error {
	var ok bool
	if err := in.native(op, func() {
		ok = in.backend.SetVariable(in.handle, name, value)
	}); err != nil {
		return err
	}
	if !ok {
		return opError(op, ErrVariableNotFound, "restoring %s", name)
	}
	return nil
}
