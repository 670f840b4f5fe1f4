package genotype

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
)

var localizeBGIMutex = &sync.RWMutex{}
var localizedBGIs = make(map[string]string)

// LocalizeBGI copies a BGEN index from google storage to the local temp
// directory, once per process. This is necessary because SQLite reads from a
// filename, instead of a reader, and therefore can't be managed over the
// wire.
func LocalizeBGI(ctx context.Context, bgiPath string, client *storage.Client) (localPath string, newDownload bool, err error) {
	// Lock upgrading is racy. See https://github.com/golang/go/issues/4026#issuecomment-66069820
	localizeBGIMutex.RLock()
	localPath, exists := localizedBGIs[bgiPath]
	localizeBGIMutex.RUnlock()
	if exists {
		return localPath, false, nil
	}

	localizeBGIMutex.Lock()
	defer localizeBGIMutex.Unlock()

	// Since it may take time to gain the Lock, check again.
	if localPath, exists = localizedBGIs[bgiPath]; exists {
		return localPath, false, nil
	}

	if client == nil {
		return "", false, fmt.Errorf("%s is a google storage path but no storage client was configured", bgiPath)
	}

	bucketName, objectName, err := prsedm.SplitGSPath(bgiPath)
	if err != nil {
		return "", false, err
	}

	rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return "", false, pfx.Err(fmt.Sprintf("%v (%s)", err, bgiPath))
	}
	defer rc.Close()

	// Several processes may share a temp directory, so each download gets
	// its own name.
	f, err := os.CreateTemp("", "*_"+filepath.Base(objectName))
	if err != nil {
		return "", false, pfx.Err(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		os.Remove(f.Name())
		return "", false, pfx.Err(err)
	}

	localizedBGIs[bgiPath] = f.Name()

	return f.Name(), true, nil
}
