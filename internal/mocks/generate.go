package mocks

//go:generate mockery --name Executor --srcpkg github.com/aevon-lab/aevon-rollup/internal/rollup --output ./rollup --outpkg rollupmocks --with-expecter
//go:generate mockery --name TableCache --srcpkg github.com/aevon-lab/aevon-rollup/internal/bucket --output ./bucket --outpkg bucketmocks --with-expecter
