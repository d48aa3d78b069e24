package store

import "strings"

// ApplyMask copia de src a dst solo las rutas del mask ("a.b.c"). Una ruta
// ausente en src borra la hoja en dst. Si la ruta atraviesa un primitivo o
// un array (en src o en dst) no hace nada.
func ApplyMask(dst, src map[string]any, mask []string) {
	for _, path := range mask {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		applyPath(dst, src, strings.Split(path, "."))
	}
}

func applyPath(dst, src map[string]any, parts []string) {
	key := parts[0]
	if len(parts) == 1 {
		if src == nil {
			delete(dst, key)
			return
		}
		v, ok := src[key]
		if !ok {
			delete(dst, key)
			return
		}
		dst[key] = v
		return
	}

	var srcChild map[string]any
	if src != nil {
		if v, ok := src[key]; ok {
			m, isMap := v.(map[string]any)
			if !isMap {
				return
			}
			srcChild = m
		}
	}

	dstChild, ok := dst[key].(map[string]any)
	if !ok {
		if existing, present := dst[key]; present && existing != nil {
			return
		}
		dstChild = map[string]any{}
		dst[key] = dstChild
	}
	applyPath(dstChild, srcChild, parts[1:])
}

// DeepMerge escribe src sobre dst recursivamente. Los mapas se mergean, el
// resto (incluidos arrays) se reemplaza.
func DeepMerge(dst, src map[string]any) {
	for k, v := range src {
		sm, srcIsMap := v.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			DeepMerge(dm, sm)
			continue
		}
		dst[k] = v
	}
}
